// Package autoload initialises the global zerolog logger from LOG_* variables.
package autoload

import (
	configx "github.com/tanpawarit/Chative-Concierge/pkg/config"
	logx "github.com/tanpawarit/Chative-Concierge/pkg/logger"
)

func init() {
	logx.Init(*configx.MustNew[logx.Config]("LOG"))
}
