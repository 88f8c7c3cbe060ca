// Package logging builds the zap logger shared by profilesync components.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/coolbeans/profilesync/pkg/config"
)

// Field keys used across components.
const (
	FieldRunID     = "run_id"
	FieldFaction   = "faction"
	FieldDocument  = "document"
	FieldUnit      = "unit"
	FieldOldPoints = "old_points"
	FieldNewPoints = "new_points"
	FieldPath      = "path"
)

// New builds a logger from the logging configuration. The json format uses
// the production encoder; console uses the development encoder without
// stack traces on warnings.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var zapConfig zap.Config
	switch cfg.Format {
	case "json":
		zapConfig = zap.NewProductionConfig()
	case "", "console":
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.DisableStacktrace = true
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// ParseLevel maps a configured level name to a zap level. An empty name
// means info.
func ParseLevel(name string) (zapcore.Level, error) {
	if strings.TrimSpace(name) == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(name)))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q: %w", name, err)
	}
	return level, nil
}
