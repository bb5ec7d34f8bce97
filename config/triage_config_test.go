package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complaint_triage/core/domain"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("TEAM_DIRECTORY_FILE", "")
	t.Setenv("BILLING_TEAM_EMAIL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 50, cfg.IntakeMaxPerCycle)
	assert.Equal(t, 5*time.Second, cfg.IntakeBlock)
	assert.Equal(t, 60*time.Second, cfg.AnalyticsCacheTTL)
	assert.Equal(t, 90*24*time.Hour, cfg.AuditRetention)
	assert.True(t, cfg.IntakeEnabled)
	assert.NotEmpty(t, cfg.WorkerID)
	assert.Equal(t, "billing@company.com", cfg.Teams.Contact(domain.TeamBilling))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TEAM_DIRECTORY_FILE", "")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("LLM_TIMEOUT_SEC", "12")
	t.Setenv("LLM_TEMPERATURE", "0.4")
	t.Setenv("INTAKE_BLOCK_MS", "250")
	t.Setenv("INTAKE_ENABLED", "false")
	t.Setenv("BILLING_TEAM_EMAIL", "money@example.com")
	t.Setenv("MANAGER_EMAIL", "boss@example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 12*time.Second, cfg.LLMTimeout)
	assert.InDelta(t, 0.4, cfg.LLMTemperature, 1e-9)
	assert.Equal(t, 250*time.Millisecond, cfg.IntakeBlock)
	assert.False(t, cfg.IntakeEnabled)
	assert.Equal(t, "money@example.com", cfg.Teams.Contact(domain.TeamBilling))
	assert.Equal(t, "boss@example.com", cfg.Teams.Manager)
}

func TestLoad_BadNumbersKeepDefaults(t *testing.T) {
	t.Setenv("TEAM_DIRECTORY_FILE", "")
	t.Setenv("INTAKE_WORKERS", "many")
	t.Setenv("NOTIFY_TIMEOUT_SEC", "-3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.IntakeWorkers)
	assert.Equal(t, 10*time.Second, cfg.NotifyTimeout)
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "teams.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadTeamDirectory(t *testing.T) {
	base := domain.DefaultTeamDirectory()

	t.Run("overlay", func(t *testing.T) {
		path := writeFile(t, `
teams:
  Refunds Team: refunds-desk@example.com
manager: head@example.com
`)
		dir, err := LoadTeamDirectory(path, base)
		require.NoError(t, err)
		assert.Equal(t, "refunds-desk@example.com", dir.Contact(domain.TeamRefunds))
		assert.Equal(t, "billing@company.com", dir.Contact(domain.TeamBilling))
		assert.Equal(t, "head@example.com", dir.Manager)
		// base untouched
		assert.Equal(t, "refunds@company.com", base.Teams[domain.TeamRefunds])
	})

	t.Run("unknown team", func(t *testing.T) {
		path := writeFile(t, "teams:\n  Legal Team: legal@example.com\n")
		_, err := LoadTeamDirectory(path, base)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Legal Team")
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := writeFile(t, "teams: [")
		_, err := LoadTeamDirectory(path, base)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadTeamDirectory(filepath.Join(t.TempDir(), "nope.yaml"), base)
		assert.Error(t, err)
	})
}

func TestLoad_TeamDirectoryFile(t *testing.T) {
	path := writeFile(t, "manager: file-boss@example.com\n")
	t.Setenv("TEAM_DIRECTORY_FILE", path)
	t.Setenv("MANAGER_EMAIL", "env-boss@example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "file-boss@example.com", cfg.Teams.Manager)
}

func TestValidate(t *testing.T) {
	cfg := &Config{Environment: "production", IntakeMaxPerCycle: 10}

	err := cfg.Validate(true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "REDIS_URL")
	assert.Contains(t, err.Error(), "JWT_SECRET")

	cfg.DatabaseURL = "postgres://localhost/triage"
	cfg.JWTSecret = "s3cret"
	assert.NoError(t, cfg.Validate(false))
}
