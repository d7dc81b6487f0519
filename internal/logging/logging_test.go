package logging

import (
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/zzenonn/zdeliver/internal/config"
)

func TestInitLogger(t *testing.T) {
	defer log.SetLevel(log.GetLevel())

	tests := []struct {
		level string
		want  log.Level
	}{
		{"trace", log.TraceLevel},
		{"debug", log.DebugLevel},
		{"INFO", log.InfoLevel},
		{"warn", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"", log.ErrorLevel},
		{"verbose", log.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			InitLogger(&config.Config{LogLevel: tt.level})
			if got := log.GetLevel(); got != tt.want {
				t.Errorf("level %q gave %s, want %s", tt.level, got, tt.want)
			}
		})
	}
}
