package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3001", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.PollInterval())
	assert.Equal(t, 30*time.Second, cfg.APITimeout())
	assert.Equal(t, 1000, cfg.Poll.PageLimit)
	assert.True(t, cfg.Storage.Watch)
	assert.False(t, cfg.Email.Enabled)
	assert.Equal(t, 587, cfg.Email.SMTPPort)
	assert.ElementsMatch(t, allKinds, cfg.Notify.KindsFor(RoleStaff))
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://shuttle.hospital.example/api
poll:
  interval_sec: 10
notify:
  admin_kinds: [new_appointment]
storage:
  db_path: ~/shuttle.db
`), 0o600))
	t.Setenv("SHUTTLEDESK_POLL_INTERVAL_SEC", "45")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://shuttle.hospital.example/api", cfg.API.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.PollInterval(), "environment wins over the file")
	assert.Equal(t, []string{"new_appointment"}, cfg.Notify.KindsFor(RoleAdmin))
	assert.NotContains(t, cfg.Storage.DBPath, "~")
}

func TestLoadConfigRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unterminated"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	cfg.API.BaseURL = "https://shuttle.test"
	cfg.Display.Theme = "mono"

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://shuttle.test", loaded.API.BaseURL)
	assert.Equal(t, "mono", loaded.Display.Theme)
}

func TestValidate(t *testing.T) {
	valid := func() *AppConfig {
		return &AppConfig{
			API:  APIConfig{BaseURL: "http://x"},
			Poll: PollConfig{IntervalSec: 30, PageLimit: 10},
		}
	}

	tests := []struct {
		name   string
		mutate func(*AppConfig)
		errMsg string
	}{
		{"no base url", func(c *AppConfig) { c.API.BaseURL = "" }, "api.base_url"},
		{"zero interval", func(c *AppConfig) { c.Poll.IntervalSec = 0 }, "poll.interval_sec"},
		{"zero page limit", func(c *AppConfig) { c.Poll.PageLimit = 0 }, "poll.page_limit"},
		{"unknown kind", func(c *AppConfig) { c.Notify.StaffKinds = []string{"deleted"} }, "unknown event kind"},
		{"email without host", func(c *AppConfig) { c.Email = EmailConfig{Enabled: true, To: "a@b"} }, "email.smtp_host"},
	}

	assert.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
