package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	testCases := []struct {
		mode       string
		debugLevel bool
	}{
		{"development", true},
		{"production", false},
		{"", true},
	}

	for _, tc := range testCases {
		t.Run(tc.mode, func(t *testing.T) {
			log, err := New(Config{Mode: tc.mode})
			require.NoError(t, err)
			assert.Equal(t, tc.debugLevel, log.Core().Enabled(zapcore.DebugLevel))
		})
	}
}

func TestNew_WritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.log")

	log, err := New(Config{Mode: "production", Filename: path})
	require.NoError(t, err)

	log.Info("order created", zap.Int64("order_id", 42))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"order created"`)
	assert.Contains(t, string(data), `"order_id":42`)
}
