package cryo

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var logger atomic.Pointer[zap.SugaredLogger]

func init() {
	// no-op until SetLogger is called
	logger.Store(zap.NewNop().Sugar())
}

// SetLogger sets the logger used for metadata building and registry diagnostics
//
// passing nil restores the no-op logger
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger.Store(l.Sugar())
}

func log() *zap.SugaredLogger {
	return logger.Load()
}
