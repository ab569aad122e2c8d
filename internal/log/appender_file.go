package log

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileAppenderOpt configures a size-rotated log file.
type FileAppenderOpt struct {
	Filename   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// AddFileAppender appends a rotating file. Close releases it.
func (m *MultiWriter) AddFileAppender(options FileAppenderOpt) *MultiWriter {
	return m.Add(&lumberjack.Logger{
		Filename:   options.Filename,
		MaxSize:    options.MaxSize,
		MaxBackups: options.MaxBackups,
		MaxAge:     options.MaxAge,
		Compress:   options.Compress,
	})
}

// Close closes every appender that holds a resource.
func (m *MultiWriter) Close() error {
	var err error
	for _, w := range m.writers {
		if c, ok := w.(io.Closer); ok && !isStdStream(w) {
			if e := c.Close(); e != nil {
				err = e
			}
		}
	}
	return err
}
