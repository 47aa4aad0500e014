package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	log  = logrus.New()
	once sync.Once
)

type Config struct {
	Level  string
	Format string // text or json
	File   string // optional rotating log file
}

// Init configures the process logger. Only the first call takes effect.
func Init(cfg Config) *logrus.Logger {
	once.Do(func() {
		configure(log, cfg)
	})
	return log
}

// New builds a standalone logger, mostly for tests and tools.
func New(cfg Config) *logrus.Logger {
	l := logrus.New()
	configure(l, cfg)
	return l
}

func configure(l *logrus.Logger, cfg Config) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}
	l.SetOutput(out)
}
