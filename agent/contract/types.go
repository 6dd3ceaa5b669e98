package contract

import (
	"encoding/json"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem marks engine bookkeeping rows; it is never sent to the model.
	RoleSystem Role = "system"
)

// Message is one role-tagged entry of the conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Turn is the inbound request: the new utterance plus the history that
// preceded it. History is never mutated by the engine.
type Turn struct {
	TenantID   string     `json:"tenant_id"`
	SessionID  string     `json:"session_id"`
	CustomerID string     `json:"customer_id,omitempty"`
	Channel    string     `json:"channel,omitempty"`
	Text       string     `json:"text"`
	History    []Message  `json:"history,omitempty"`
	Partition  *Partition `json:"partition,omitempty"`
}

// Partition names a retrieval namespace. A nil *Partition means the default
// namespace; Name alone is the bare-string form.
type Partition struct {
	Name string `json:"partition"`
	Sub  string `json:"subPartition,omitempty"`
}

// Key renders the partition as a cache key fragment.
func (p *Partition) Key() string {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return "default"
	}
	if sub := strings.TrimSpace(p.Sub); sub != "" {
		return strings.TrimSpace(p.Name) + "/" + sub
	}
	return strings.TrimSpace(p.Name)
}

// IsZero reports whether the partition should route to the default namespace.
func (p *Partition) IsZero() bool {
	return p == nil || strings.TrimSpace(p.Name) == ""
}

// UnmarshalJSON accepts both the bare-string form and the structured form.
func (p *Partition) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		p.Name = strings.TrimSpace(bare)
		p.Sub = ""
		return nil
	}
	type shadow Partition
	var s shadow
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = Partition(s)
	return nil
}

type Source struct {
	ID             string  `json:"id"`
	Label          string  `json:"label"`
	Snippet        string  `json:"snippet"`
	RelevanceScore float64 `json:"relevanceScore"`
}

type RetrievalResult struct {
	ContextText string   `json:"contextText"`
	Sources     []Source `json:"sources"`
	IsWorking   bool     `json:"isWorking"`
}

// DegradedRetrieval is what callers get when every attempt failed.
func DegradedRetrieval() RetrievalResult {
	return RetrievalResult{ContextText: "", Sources: []Source{}, IsWorking: false}
}

type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type ToolResult struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Output  json.RawMessage `json:"output"`
	Success bool            `json:"success"`
}

// Caller carries the identity the tool executor trusts over anything the
// model supplies.
type Caller struct {
	TenantID       string
	SessionID      string
	ConversationID string
	CustomerID     string
	Channel        string
	Partition      *Partition
}

type Mood string

const (
	MoodNeutral    Mood = "neutral"
	MoodFriendly   Mood = "friendly"
	MoodEmpathetic Mood = "empathetic"
	MoodApologetic Mood = "apologetic"
	MoodExcited    Mood = "excited"
)

var Moods = []Mood{MoodNeutral, MoodFriendly, MoodEmpathetic, MoodApologetic, MoodExcited}

type Escalation struct {
	ShouldEscalate bool   `json:"shouldEscalate"`
	Reason         string `json:"reason,omitempty"`
}

// AgentOutput is the validated answer consumed by the host UI and the
// messaging transport.
type AgentOutput struct {
	ResponseText       string     `json:"responseText"`
	ReasoningNote      string     `json:"reasoningNote"`
	Mood               Mood       `json:"mood"`
	SuggestedFollowUps []string   `json:"suggestedFollowUps"`
	CategoriesMatched  []string   `json:"categoriesMatched"`
	ToolsUsed          []string   `json:"toolsUsed"`
	Escalation         Escalation `json:"escalation"`
}

// Normalize replaces nil slices and an empty mood with their defaults so the
// JSON shape is stable.
func (o *AgentOutput) Normalize() {
	if o.Mood == "" {
		o.Mood = MoodNeutral
	}
	if o.SuggestedFollowUps == nil {
		o.SuggestedFollowUps = []string{}
	}
	if o.CategoriesMatched == nil {
		o.CategoriesMatched = []string{}
	}
	if o.ToolsUsed == nil {
		o.ToolsUsed = []string{}
	}
}

// Clone returns a deep copy so cached values cannot be mutated by callers.
func (o AgentOutput) Clone() AgentOutput {
	o.SuggestedFollowUps = append([]string(nil), o.SuggestedFollowUps...)
	o.CategoriesMatched = append([]string(nil), o.CategoriesMatched...)
	o.ToolsUsed = append([]string(nil), o.ToolsUsed...)
	o.Normalize()
	return o
}

type UsageStats struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	Rounds           int `json:"rounds"`
}

func (u *UsageStats) Add(prompt, completion int) {
	u.PromptTokens += prompt
	u.CompletionTokens += completion
}

// ReplySource tells the host which path produced the answer.
type ReplySource string

const (
	SourceQuickAnswer ReplySource = "quick_answer"
	SourceCache       ReplySource = "cache"
	SourceModel       ReplySource = "model"
	SourceEmergency   ReplySource = "emergency"
	SourceHandoff     ReplySource = "handoff"
)

type TurnResult struct {
	ConversationID string      `json:"conversationId"`
	Output         AgentOutput `json:"output"`
	Source         ReplySource `json:"source"`
	Usage          UsageStats  `json:"usage"`
	Retrieval      bool        `json:"retrievalWorking"`
	CompletedAt    time.Time   `json:"completedAt"`
}
