// Package log provides the process-wide logger: logrus behind the Logger
// interface, written through a pattern formatter to the console and an
// optional rotating file.
package log

import (
	"os"
	"sync"

	"firestige.xyz/zbridge/internal/config"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

const (
	DefaultPattern = "%time [%level] %field %msg"
	DefaultTime    = "2006-01-02 15:04:05.000"
)

var (
	mu     sync.RWMutex
	logger Logger
)

// GetLogger returns the logger installed by Init. Before Init it returns a
// console logger at info level.
func GetLogger() Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = newConsole()
	}
	return logger
}

// Init builds the logger described by cfg and installs it process wide.
func Init(cfg config.LogConfig) error {
	l, err := New(cfg, os.Stdout)
	if err != nil {
		return err
	}
	SetLogger(l)
	return nil
}

// SetLogger installs l process wide.
func SetLogger(l Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

func newConsole() Logger {
	l, err := New(config.LogConfig{Level: "info"}, os.Stdout)
	if err != nil {
		panic(err)
	}
	return l
}

// Flush closes the file appenders of the installed logger. Later writes
// reopen them.
func Flush() error {
	mu.RLock()
	l := logger
	mu.RUnlock()
	a, ok := l.(*logrusAdapter)
	if !ok {
		return nil
	}
	if mw, ok := a.entry.Logger.Out.(*MultiWriter); ok {
		return mw.Close()
	}
	return nil
}
