package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "priceindex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestLoadFile tests the layering of defaults, file and environment
func TestLoadFile(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults only",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "TPD", cfg.Index.DefaultMethod)
				assert.Equal(t, "month", cfg.Index.DateColumn)
				assert.Equal(t, "id", cfg.Index.ProductIDColumn)
				assert.Equal(t, 4, cfg.Index.MaxConcurrency)
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.Equal(t, "priceindex", cfg.Telemetry.ServiceName)
			},
		},
		{
			name: "file overrides defaults",
			file: `
server:
  port: 9090
index:
  default_method: TDH
  date_column: period
  characteristics: [brand, size]
logging:
  level: DEBUG
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, "TDH", cfg.Index.DefaultMethod)
				assert.Equal(t, "period", cfg.Index.DateColumn)
				assert.Equal(t, []string{"brand", "size"}, cfg.Index.Characteristics)
				assert.Equal(t, "debug", cfg.Logging.Level)
				// untouched keys keep their defaults
				assert.Equal(t, "price", cfg.Index.PriceColumn)
				assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)
			},
		},
		{
			name: "environment overrides file",
			file: `
server:
  port: 9090
index:
  max_concurrency: 2
`,
			env: map[string]string{
				"PINDEX_SERVER_PORT":            "7070",
				"PINDEX_INDEX_CHARACTERISTICS":  "colour,weight",
				"PINDEX_SERVER_COMPUTE_TIMEOUT": "5s",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, 2, cfg.Index.MaxConcurrency)
				assert.Equal(t, []string{"colour", "weight"}, cfg.Index.Characteristics)
				assert.Equal(t, 5*time.Second, cfg.Server.ComputeTimeout)
			},
		},
		{
			name:    "invalid port",
			env:     map[string]string{"PINDEX_SERVER_PORT": "70000"},
			wantErr: true,
		},
		{
			name:    "invalid default method",
			env:     map[string]string{"PINDEX_INDEX_DEFAULT_METHOD": "GEKS"},
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			file:    "server: [port",
			wantErr: true,
		},
		{
			name:    "unparsable env value",
			env:     map[string]string{"PINDEX_INDEX_MAX_CONCURRENCY": "many"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := ""
			if tt.file != "" {
				path = writeConfigFile(t, tt.file)
			}

			cfg, err := LoadFile(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

// TestLoadUsesConfigFileEnv tests that Load reads the file named in the environment
func TestLoadUsesConfigFileEnv(t *testing.T) {
	path := writeConfigFile(t, "index:\n  result_retention: 7\n")
	t.Setenv("PINDEX_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Index.ResultRetention)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())
	assert.True(t, cfg.Security.RateLimit.Enabled)
	assert.Equal(t, int64(32<<20), cfg.Server.MaxUploadBytes)
}

func TestIndexConfigColumns(t *testing.T) {
	cfg := Default().Index
	cfg.PriceColumn = "unit_price"
	cfg.Characteristics = []string{"brand"}

	cols := cfg.Columns()
	assert.Equal(t, "unit_price", cols.Price)
	assert.Equal(t, "quantity", cols.Quantity)
	assert.Equal(t, "month", cols.Date)
	assert.Equal(t, "id", cols.ProductID)
	assert.Equal(t, []string{"brand"}, cols.Characteristics)
}
