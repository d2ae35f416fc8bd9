package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects level, format and an optional rotated log file.
type Options struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds the process logger. With a file set, output goes to both stdout and the
// rotated file.
func New(opts Options) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(opts.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var out io.Writer = os.Stdout
	if opts.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 100),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 30),
			Compress:   true,
		})
	}
	logger.SetOutput(out)
	return logger
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
