// Package logging owns the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the global logger. It is usable before Init with logrus defaults.
var Logger = logrus.New()

var once sync.Once

// Options configures Init.
type Options struct {
	Level string
	// File enables a rotated log file next to stdout output.
	File string
}

// Init configures Logger once. Later calls are no-ops.
func Init(opts Options) {
	once.Do(func() {
		var out io.Writer = os.Stdout
		if opts.File != "" {
			out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			})
		}
		Logger.SetOutput(out)
		Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})

		level, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			level = logrus.InfoLevel
		}
		Logger.SetLevel(level)

		Logger.WithFields(logrus.Fields{"log_level": level.String(), "log_file": opts.File}).Info("logger initialized")
	})
}

// Printf lets the logger stand in wherever a printf-style logger is expected (gorm, cron).
type Printf struct {
	Entry *logrus.Entry
}

func (p Printf) Printf(format string, args ...interface{}) {
	p.Entry.Infof(format, args...)
}

// Component returns a logger tagged with the component name.
func Component(name string) *logrus.Entry {
	return Logger.WithField("component", name)
}
