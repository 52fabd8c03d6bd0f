package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	constants "contmon/config"
)

const timeLayout = "2006-01-02 15:04:05.000"

// Options configures the process logger.
type Options struct {
	Level        string        // debug, info, warn or error
	Format       string        // console or json, for stderr
	Path         string        // optional JSON log file, rotated
	MaxAge       time.Duration // rotated files older than this are removed
	RotationTime time.Duration
}

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base   = newStderrLogger(constants.DEFAULT_LOG_FORMAT)
	closer func() error
)

// Init replaces the process logger. It may be called again, e.g. after the
// configuration has been loaded.
func Init(opts Options) error {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	cores := []zapcore.Core{
		zapcore.NewCore(stderrEncoder(opts.Format), zapcore.Lock(os.Stderr), level),
	}

	var rotator *rotatelogs.RotateLogs
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		maxAge := opts.MaxAge
		if maxAge == 0 {
			maxAge = constants.DEFAULT_LOG_MAX_AGE * 24 * time.Hour
		}
		rotation := opts.RotationTime
		if rotation == 0 {
			rotation = constants.DEFAULT_LOG_ROTATION_TIME * time.Hour
		}

		rotator, err = rotatelogs.New(
			opts.Path+".%Y%m%d",
			rotatelogs.WithLinkName(opts.Path),
			rotatelogs.WithMaxAge(maxAge),
			rotatelogs.WithRotationTime(rotation),
		)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(jsonEncoder(), zapcore.AddSync(rotator), level))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	mu.Lock()
	_ = base.Sync()
	if closer != nil {
		_ = closer()
		closer = nil
	}
	base = l
	if rotator != nil {
		closer = rotator.Close
	}
	mu.Unlock()

	level.SetLevel(lvl)
	return nil
}

// ParseLevel accepts debug, info, warn (or warning) and error.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// SetLevel changes the level of the current logger.
func SetLevel(s string) error {
	lvl, err := ParseLevel(s)
	if err != nil {
		return err
	}
	level.SetLevel(lvl)
	return nil
}

// L returns the structured logger handed to components.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Close flushes buffered entries and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	_ = base.Sync()
	if closer != nil {
		_ = closer()
		closer = nil
	}
}

func sugar() *zap.SugaredLogger {
	return L().WithOptions(zap.AddCallerSkip(1)).Sugar()
}

// Info logs an informational message
func Info(message string, args ...interface{}) {
	sugar().Infof(message, args...)
}

// Warning logs a warning message
func Warning(message string, args ...interface{}) {
	sugar().Warnf(message, args...)
}

// Error logs an error message
func Error(message string, args ...interface{}) {
	sugar().Errorf(message, args...)
}

// Success logs a successful outcome at info level
func Success(message string, args ...interface{}) {
	sugar().With("outcome", "success").Infof(message, args...)
}

// Debug logs a debug message
func Debug(message string, args ...interface{}) {
	sugar().Debugf(message, args...)
}

func newStderrLogger(format string) *zap.Logger {
	core := zapcore.NewCore(stderrEncoder(format), zapcore.Lock(os.Stderr), level)
	return zap.New(core, zap.AddCaller())
}

func stderrEncoder(format string) zapcore.Encoder {
	if format == "json" {
		return jsonEncoder()
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.ConsoleSeparator = " "
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	return zapcore.NewConsoleEncoder(cfg)
}

func jsonEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return zapcore.NewJSONEncoder(cfg)
}
