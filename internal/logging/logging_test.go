package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngs-reimbursement-mcp-server/internal/domain"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		config    domain.LoggingConfig
		level     logrus.Level
		formatter interface{}
	}{
		{"json default", domain.LoggingConfig{Level: "debug"}, logrus.DebugLevel, &logrus.JSONFormatter{}},
		{"text", domain.LoggingConfig{Level: "warn", Format: "text"}, logrus.WarnLevel, &logrus.TextFormatter{}},
		{"bad level falls back", domain.LoggingConfig{Level: "verbose", Output: "stderr"}, logrus.InfoLevel, &logrus.JSONFormatter{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			require.NoError(t, err)
			assert.Equal(t, tt.level, logger.GetLevel())
			assert.IsType(t, tt.formatter, logger.Formatter)
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")

	logger, err := New(domain.LoggingConfig{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)
	logger.WithField("panel", "Liquid Biopsy").Info("classified")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "classified", entry["message"])
	assert.Equal(t, "Liquid Biopsy", entry["panel"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_BadPath(t *testing.T) {
	_, err := New(domain.LoggingConfig{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	assert.Error(t, err)
}
