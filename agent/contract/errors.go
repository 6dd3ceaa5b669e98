package contract

import "errors"

var (
	ErrModelInvoke          = errors.New("model invoke failed")
	ErrSchemaViolation      = errors.New("model response violates schema")
	ErrPromptMissing        = errors.New("required prompt is missing")
	ErrValidation           = errors.New("validation failed")
	ErrInferenceUnavailable = errors.New("inference service unavailable")
	ErrTurnDeadline         = errors.New("turn deadline exceeded")
	ErrRetrievalDegraded    = errors.New("retrieval degraded")
	ErrToolNotFound         = errors.New("tool not found")
	ErrToolInput            = errors.New("tool input rejected")
)
