package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"factoryops/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  env: test\nlog:\n  level: error\n"), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestBuildWithInMemoryStore(t *testing.T) {
	cfg := loadTestConfig(t)
	require.Equal(t, "mock", cfg.Database.Type)
	cfg.Intent.Sweeper.Enabled = true

	app, err := NewBuilder(cfg).Build(context.Background())
	require.NoError(t, err)
	require.NotNil(t, app.sweeper)
	srv := app.GetServer()

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var health struct {
		Status string   `json:"status"`
		Rules  []string `json:"rule_groups"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, []string{"data_op", "material"}, health.Rules)

	body := `{"intentCode":"MATERIAL_BATCH_RESERVE","category":"MATERIAL","context":{"entityIdentifier":"MB-2024-002","quantity":10}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/intents/execute", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", "op-7")
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"COMPLETED"`)

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `factoryops_intent_outcomes_total{category="MATERIAL",status="COMPLETED"} 1`)
}

func TestBuildWithoutMetrics(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Metrics.Enabled = false

	app, err := NewBuilder(cfg).Build(context.Background())
	require.NoError(t, err)
	assert.Nil(t, app.sweeper)

	w := httptest.NewRecorder()
	app.GetServer().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBuildRejectsBadRulesFile(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Intent.RulesPath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewBuilder(cfg).Build(context.Background())
	assert.ErrorContains(t, err, "failed to load rules")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRulesCheckCommand(t *testing.T) {
	out, err := run(t, "rules", "check", "../infrastructure/rules/default_rules.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "data_op")
	assert.Contains(t, out, "material")
	assert.Contains(t, out, "default_rules.yaml: ok")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("groups: {}\n"), 0o600))
	_, err = run(t, "rules", "check", bad)
	assert.ErrorContains(t, err, "no rule groups defined")

	_, err = run(t, "rules", "check")
	assert.Error(t, err)
}

func TestTokensPruneCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"), 0o600))

	out, err := run(t, "--config", path, "tokens", "prune", "--older-than", "1h")
	require.NoError(t, err)
	assert.Equal(t, "pruned 0 tokens\n", out)

	_, err = run(t, "--config", path, "tokens", "prune", "--older-than=-1h")
	assert.ErrorContains(t, err, "must not be negative")
}

func TestMigrateNeedsSQLDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"), 0o600))

	_, err := run(t, "--config", path, "migrate", "--seed")
	assert.ErrorContains(t, err, "needs a SQL database")
}
