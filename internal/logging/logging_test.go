package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragd/internal/logging"
)

func TestNew_Defaults(t *testing.T) {
	logger, err := logging.New(logging.Config{})
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestNew_ConstantFields(t *testing.T) {
	logger, err := logging.New(logging.Config{
		Level:  "debug",
		Format: "console",
		Fields: map[string]string{"service": "ragd"},
	})
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     logging.Config
		wantErr bool
	}{
		{"valid json", logging.Config{Level: "info", Format: "json"}, false},
		{"valid console", logging.Config{Level: "warn", Format: "console"}, false},
		{"bad level", logging.Config{Level: "loud", Format: "json"}, true},
		{"bad format", logging.Config{Level: "info", Format: "xml"}, true},
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
