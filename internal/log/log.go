package log

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu    sync.Mutex
	sugar *zap.SugaredLogger
)

// Init configures the global logger. In debug mode it uses zap's development
// config (human-readable, DEBUG level); otherwise production JSON at INFO.
// The returned function flushes buffered entries and should be deferred from
// main.
func Init(debug bool) func() error {
	mu.Lock()
	defer mu.Unlock()

	var l *zap.Logger
	if debug {
		l, _ = zap.NewDevelopment()
	} else {
		l, _ = zap.NewProduction()
	}
	sugar = l.Sugar()
	return l.Sync
}

func logger() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if sugar == nil {
		l, _ := zap.NewProduction()
		sugar = l.Sugar()
	}
	return sugar
}

func Debug(msg string, kv ...any) {
	logger().Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	logger().Infow(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	logger().Errorw(msg, extended...)
}
