package log

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type logCtxKeyType string

const logCtxKey logCtxKeyType = "vllmd.logger"

const (
	// LogVerbosityInfo is the verbosity level for info logging.
	LogVerbosityInfo = 0
	// LogVerbosityDebug is the verbosity level for debug logging.
	LogVerbosityDebug = 2
	// LogVerbosityTrace is the verbosity level for trace logging.
	LogVerbosityTrace = 9

	formatText = "text"
	formatJSON = "json"

	outputStderr = "stderr"
	outputStdout = "stdout"
)

// Config represents the configuration of the logging.
type Config struct {
	// Verbosity sets the level of the logging.
	Verbosity int
	// Format specifies the format of the log output, text or json.
	Format string
	// Output is where log lines are written, stderr, stdout or a file path.
	Output string
}

// Configure will configure the global logger from the supplied config.
func Configure(logConfig *Config) error {
	configureVerbosity(logConfig)

	switch strings.ToLower(logConfig.Format) {
	case formatText:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			DisableColors:   true,
			TimestampFormat: "2006-01-02T15:04:05Z07:00",
		})
	case formatJSON:
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return NewInvalidLogFormat(logConfig.Format)
	}

	switch logConfig.Output {
	case outputStderr:
		logrus.SetOutput(os.Stderr)
	case outputStdout:
		logrus.SetOutput(os.Stdout)
	case "":
		return ErrLogOutputRequired
	default:
		file, err := os.OpenFile(logConfig.Output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log output file %s: %w", logConfig.Output, err)
		}

		logrus.SetOutput(file)
	}

	return nil
}

func configureVerbosity(logConfig *Config) {
	logrus.SetLevel(logrus.InfoLevel)

	if logConfig.Verbosity >= LogVerbosityDebug && logConfig.Verbosity < LogVerbosityTrace {
		logrus.SetLevel(logrus.DebugLevel)
	} else if logConfig.Verbosity >= LogVerbosityTrace {
		logrus.SetLevel(logrus.TraceLevel)
	}
}

// GetLogger will get a logger from the supplied context or return a logger
// based on the globally configured one.
func GetLogger(ctx context.Context) *logrus.Entry {
	logger := ctx.Value(logCtxKey)
	if logger == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}

	entry, ok := logger.(*logrus.Entry)
	if !ok {
		return logrus.NewEntry(logrus.StandardLogger())
	}

	return entry
}

// WithLogger attaches the supplied logger to the context.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, logCtxKey, logger)
}
