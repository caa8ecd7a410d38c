// Package logger builds the process-wide structured logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kroeungcyber/iotscan/internal/config"
)

// New builds a logrus entry from the logging configuration. When a log
// file is configured, output goes to both stderr and the rotated file.
func New(opts config.LoggingOpts) *logrus.Entry {
	l := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch opts.Format {
	case "text":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	}

	var out io.Writer = os.Stderr
	if opts.File != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		})
	}
	l.SetOutput(out)

	return logrus.NewEntry(l)
}
