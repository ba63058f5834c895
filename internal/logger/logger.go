package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the encoder, level and optional file sink.
type Options struct {
	Env   string // "production" switches the console to JSON
	Level string
	File  string // rotated with lumberjack when set
}

// OptionsFromEnv reads ENV, LOG_LEVEL and LOG_FILE.
func OptionsFromEnv() Options {
	return Options{
		Env:   os.Getenv("ENV"),
		Level: os.Getenv("LOG_LEVEL"),
		File:  os.Getenv("LOG_FILE"),
	}
}

// NewLogger creates a new logger based on environment
func NewLogger() (*zap.Logger, error) {
	return New(OptionsFromEnv())
}

// New builds a console logger and, if opts.File is set, a JSON file logger
// teed behind one level.
func New(opts Options) (*zap.Logger, error) {
	env := strings.ToLower(opts.Env)
	if env == "" {
		env = "development"
	}
	level := zap.NewAtomicLevelAt(ParseLevel(opts.Level))

	var consoleEncoder zapcore.Encoder
	if env == "production" {
		consoleEncoder = zapcore.NewJSONEncoder(encoderConfig(zapcore.LowercaseLevelEncoder, ""))
	} else {
		consoleEncoder = zapcore.NewConsoleEncoder(encoderConfig(zapcore.CapitalColorLevelEncoder, ""))
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level),
	}

	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    100, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		fileEncoder := zapcore.NewJSONEncoder(encoderConfig(zapcore.LowercaseLevelEncoder, "stacktrace"))
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(rotating), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// ParseLevel maps a LOG_LEVEL value to a zap level. Unknown values mean info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func encoderConfig(levelEncoder zapcore.LevelEncoder, stacktraceKey string) zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  stacktraceKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    levelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}
