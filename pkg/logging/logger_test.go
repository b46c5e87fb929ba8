package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		level string
		want  zapcore.Level
	}{
		{name: "local debug", env: "local", level: "debug", want: zapcore.DebugLevel},
		{name: "production info", env: "production", level: "info", want: zapcore.InfoLevel},
		{name: "uppercase level", env: "dev", level: "WARN", want: zapcore.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.env, tt.level)
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}
			if !logger.Core().Enabled(tt.want) {
				t.Errorf("expected level %s to be enabled", tt.want)
			}
			if tt.want > zapcore.DebugLevel && logger.Core().Enabled(tt.want-1) {
				t.Errorf("expected level %s to be disabled", tt.want-1)
			}
		})
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := NewLogger("local", "loud"); err == nil {
		t.Fatal("expected error for invalid level")
	}
}
