package logging

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: NewDefaultConfig()},
		{name: "console debug", cfg: Config{Level: "debug", Format: "console"}},
		{name: "unknown format", cfg: Config{Level: "info", Format: "xml"}, wantErr: true},
		{name: "unknown level", cfg: Config{Level: "loud", Format: "json"}, wantErr: true},
		{name: "empty field key", cfg: Config{Level: "info", Format: "json", Fields: map[string]string{"": "x"}}, wantErr: true},
		{name: "empty field value", cfg: Config{Level: "info", Format: "json", Fields: map[string]string{"site": ""}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(Config{Level: "warn", Format: "console"})
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	_, err = NewLogger(Config{Level: "info", Format: "yaml"})
	assert.Error(t, err)
}

func TestIsStdoutSyncError(t *testing.T) {
	assert.True(t, isStdoutSyncError(syscall.EINVAL))
	assert.True(t, isStdoutSyncError(syscall.ENOTTY))
	assert.False(t, isStdoutSyncError(syscall.EIO))
	assert.False(t, isStdoutSyncError(errors.New("disk full")))
}

func TestSync_Nop(t *testing.T) {
	assert.NoError(t, Sync(zap.NewNop()))
}

func TestTestLogger(t *testing.T) {
	logger := NewTestLogger()
	logger.Info("frame loop started", zap.Int("k", 3))
	logger.Warn("tick rejected")

	assert.Len(t, logger.All(), 2)
	assert.Equal(t, 1, logger.FilterMessage("tick rejected").Len())
	logger.AssertLogged(t, zapcore.WarnLevel, "rejected")
	logger.AssertNotLogged(t, zapcore.ErrorLevel, "rejected")
}
