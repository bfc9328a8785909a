package logging

import (
	"strings"
	"sync"

	"github.com/mborders/logmatic"
)

var (
	mu  sync.RWMutex
	std = New("info")
)

// New returns a leveled logger. Unknown levels fall back to info.
func New(level string) *logmatic.Logger {
	l := logmatic.NewLogger()
	l.ExitOnFatal = true
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		l.SetLevel(logmatic.TRACE)
	case "debug":
		l.SetLevel(logmatic.DEBUG)
	case "warn", "warning":
		l.SetLevel(logmatic.WARN)
	case "error":
		l.SetLevel(logmatic.ERROR)
	default:
		l.SetLevel(logmatic.INFO)
	}
	return l
}

// L is the process-wide logger.
func L() *logmatic.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

func SetDefault(l *logmatic.Logger) {
	if l == nil {
		return
	}
	mu.Lock()
	std = l
	mu.Unlock()
}

// Or returns l, or the process-wide logger when l is nil.
func Or(l *logmatic.Logger) *logmatic.Logger {
	if l != nil {
		return l
	}
	return L()
}
