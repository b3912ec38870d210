package log

import (
	"io"
	"os"
	"path"
	"sync"

	"workbench/pkg/contextx"

	"github.com/sirupsen/logrus"
)

var (
	defaultLoggerName = "workbench"

	setupOnce sync.Once
	logger    *logrus.Logger

	// Options are applied before the first log call, typically from config.
	optMu   sync.Mutex
	options = Options{
		Level:           "info",
		Format:          defaultFormat,
		TimestampFormat: defaultTimestampFormat,
	}
)

type Options struct {
	Level           string
	Format          string
	TimestampFormat string
	// DirPath, when set, appends to <DirPath>/workbench.log instead of stderr.
	DirPath string
}

func Initialize(opts Options) {
	optMu.Lock()
	defer optMu.Unlock()
	if opts.Level != "" {
		options.Level = opts.Level
	}
	if opts.Format != "" {
		options.Format = opts.Format
	}
	if opts.TimestampFormat != "" {
		options.TimestampFormat = opts.TimestampFormat
	}
	options.DirPath = opts.DirPath
}

func setupLogger() *logrus.Logger {
	formatter := NewLogFormatter()
	formatter.OutputFormat = options.Format
	formatter.TimestampFormat = options.TimestampFormat

	var out io.Writer = os.Stderr
	if options.DirPath != "" {
		if err := os.MkdirAll(options.DirPath, 0770); err == nil {
			outlog := path.Join(options.DirPath, "workbench.log")
			if file, err := os.OpenFile(outlog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666); err == nil {
				out = file
			}
		}
	}

	level, err := logrus.ParseLevel(options.Level)
	if err != nil {
		level = logrus.InfoLevel
	}

	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	l.SetFormatter(formatter)
	return l
}

func GetLogger(ctx interface{}, name string) *logrus.Entry {
	setupOnce.Do(func() {
		logger = setupLogger()
	})

	requestId := "-"
	session := "-"
	switch t := ctx.(type) {
	case string:
		requestId = t
	case *contextx.Context:
		if t != nil {
			if r := t.GetRequestID(); r != "" {
				requestId = r
			}
			if s := t.GetSessionID(); s != "" {
				session = s
			}
		}
	case map[string]interface{}:
		if r, ok := t["requestId"].(string); ok {
			requestId = r
		}
		if s, ok := t["sessionId"].(string); ok {
			session = s
		}
	}
	return logger.WithFields(map[string]interface{}{
		"name":      name,
		"requestId": requestId,
		"session":   session,
	})
}

func Info(ctx interface{}, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Info(args...)
}

func Debug(ctx interface{}, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Debug(args...)
}

func Trace(ctx interface{}, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Trace(args...)
}

func Warn(ctx interface{}, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Warn(args...)
}

func Panic(ctx interface{}, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Panic(args...)
}

func Error(ctx interface{}, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Error(args...)
}

func Infof(ctx interface{}, format string, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Infof(format, args...)
}

func Debugf(ctx interface{}, format string, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Debugf(format, args...)
}

func Tracef(ctx interface{}, format string, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Tracef(format, args...)
}

func Warnf(ctx interface{}, format string, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Warnf(format, args...)
}

func Panicf(ctx interface{}, format string, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Panicf(format, args...)
}

func Errorf(ctx interface{}, format string, args ...interface{}) {
	GetLogger(ctx, defaultLoggerName).Errorf(format, args...)
}
