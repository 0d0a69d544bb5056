package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: memory
auth:
  mode: jwt
  jwt:
    secret: s3cret
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "follicle-match", cfg.App.Name)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 0.6, cfg.Scoring.ContentWeight)
	assert.Equal(t, 0.4, cfg.Scoring.EngagementWeight)
	assert.Equal(t, 100, cfg.Scoring.SampleCap)
	assert.Equal(t, 0.5, cfg.Scoring.MinSimilarity)
	assert.Equal(t, 3, cfg.Scoring.MinSample)
	assert.Equal(t, 5, cfg.Scoring.MaxReasons)
	assert.Equal(t, "docstore", cfg.Catalog.Source)
	assert.Equal(t, 2*60*60*1000, cfg.Catalog.TTL)
	assert.Equal(t, "bulk-score-entities", cfg.Scoring.BulkProcessID)
}

func TestLoadFromFile_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_KC_URL", "http://keycloak:8080")
	path := writeConfig(t, `
database:
  driver: memory
auth:
  mode: keycloak
  keycloak:
    url: ${TEST_KC_URL}
    realm: hair
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://keycloak:8080", cfg.Auth.Keycloak.URL)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "postgres without host",
			body: "database:\n  driver: postgres\nauth:\n  mode: jwt\n  jwt:\n    secret: x\n",
			want: "database.postgres.host is required",
		},
		{
			name: "unknown driver",
			body: "database:\n  driver: sqlite\n",
			want: "database.driver must be postgres or memory",
		},
		{
			name: "camunda without broker",
			body: "database:\n  driver: memory\ncamunda:\n  enabled: true\nauth:\n  mode: jwt\n  jwt:\n    secret: x\n",
			want: "camunda.broker_address is required",
		},
		{
			name: "elasticsearch catalog without address",
			body: "database:\n  driver: memory\ncatalog:\n  source: elasticsearch\nauth:\n  mode: jwt\n  jwt:\n    secret: x\n",
			want: "database.elasticsearch.addresses or url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGetWorkerConfig_Fallback(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"bulk-score": {Enabled: false, MaxJobsActive: 2},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "bulk-score"))
	assert.Equal(t, 2, GetWorkerConfig(cfg, "bulk-score").MaxJobsActive)
	assert.True(t, IsWorkerEnabled(cfg, "other"))
	assert.Equal(t, 3, GetWorkerConfig(cfg, "other").MaxRetries)
}
