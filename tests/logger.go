package testutil

import (
	"fmt"
	"sync"
	"testing"

	"github.com/trezcool/eduspace/core"
)

// Logger logs through t and keeps the messages logged at error level and above.
type Logger struct {
	t *testing.T

	mu     sync.Mutex
	Errors []string
}

var _ core.Logger = (*Logger)(nil)

func NewLogger(t *testing.T) *Logger {
	return &Logger{t: t}
}

func (l *Logger) log(level, msg string, args []interface{}) {
	l.t.Logf("%s: %s %v", level, msg, args)
}

func (l *Logger) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

// ErrorCount returns the number of messages logged at error level and above.
func (l *Logger) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Errors)
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args) }

func (l *Logger) Error(msg string, args ...interface{}) {
	l.log("ERROR", msg, args)
	l.record(msg)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log("FATAL", msg, args)
	l.record(fmt.Sprint("fatal: ", msg))
}
