package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"alcyxob/physiotrack/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the application logger: a colored console core plus, when
// cfg.Dir is set, a rotating JSON file per day.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	cores := []zapcore.Core{newConsoleCore(level)}
	if cfg.Dir != "" {
		fileCore, err := newFileCore(cfg.Dir, level)
		if err != nil {
			return nil, err
		}
		cores = append(cores, fileCore)
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// newFileCore writes JSON entries to a rotating file named like '2025-07-30.log'.
func newFileCore(logDir string, level zapcore.Level) (zapcore.Core, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create log directory: %w", err)
	}

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:   "message",
		LevelKey:     "level",
		TimeKey:      "time",
		NameKey:      "logger",
		CallerKey:    "caller",
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}

	fileName := filepath.Join(logDir, time.Now().Format("2006-01-02")+".log")
	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   fileName,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     7, // days
		Compress:   true,
	})

	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), writer, level), nil
}

func newConsoleCore(level zapcore.Level) zapcore.Core {
	consoleEncoderConfig := zap.NewDevelopmentEncoderConfig()
	consoleEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleEncoderConfig),
		zapcore.AddSync(os.Stdout),
		level,
	)
}
