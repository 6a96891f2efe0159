// Package logging builds the process-wide structured logger. It mirrors
// the shape of the original implementation's logger.rs (level, a
// console-or-file writer choice, rotation) but speaks zap
// instead of tklog, matching the structured-logging idiom used elsewhere
// in the example pack (e.g. link-rift-link-rift).
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config mirrors the original's Log config section.
type Config struct {
	// Writers is "console" or "file".
	Writers string
	// Level is one of debug, info, warn, error, fatal, written all in lower
	// or all in upper case; anything else falls back to info.
	Level string
	// Dir is the directory file-mode logs are written under.
	Dir string
	// RotateDateDays is how many days rotated log files are kept (0 keeps
	// them regardless of age); it does not trigger rotation by itself.
	RotateDateDays int
	// RotateSizeMB rotates the log file once it exceeds this size in
	// megabytes (0 uses lumberjack's 100 MB default).
	RotateSizeMB int
}

// New builds a *zap.Logger from cfg. On an invalid level it falls back to
// info, matching the original's unwrap-or-default behavior.
func New(cfg Config) (*zap.Logger, error) {
	level := parseLevel(cfg.Level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var writer zapcore.WriteSyncer
	if cfg.Writers == "file" {
		writer = zapcore.AddSync(&lumberjack.Logger{
			Filename: filepath.Join(cfg.Dir, "signalhub.log"),
			MaxAge:   cfg.RotateDateDays,
			MaxSize:  cfg.RotateSizeMB,
			Compress: true,
		})
	} else {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
		writer = zapcore.AddSync(os.Stdout)
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), writer, level)
	return zap.New(core, zap.AddCaller()), nil
}

func parseLevel(level string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
