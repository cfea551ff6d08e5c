package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", time.Minute},
		{"15m", 15 * time.Minute},
		{" 12h ", 12 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"0d", 0},
		{"soon", time.Minute},
		{"-5m", time.Minute},
		{"xd", time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDuration(tt.in, time.Minute))
		})
	}
}
