package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var configEnv = []string{
	"LOGIN_URL", "OWNERS_URL", "LOGIN_EMAIL", "LOGIN_PASSWORD", "WEBHOOK_URL",
	"N8N_WEBHOOK_URL", "TIMEZONE", "USE_SSO_LOGIN", "MFA_WAIT_SECONDS",
	"SELECTOR_OVERRIDES", "SESSION_STORE", "INPUT_FILE", "HEADLESS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnv {
		// Setenv registers the restore; godotenv only fills unset keys
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	// run from an empty dir so a developer .env is never picked up
	testChdir(t, t.TempDir())
}

func setRequired(t *testing.T) {
	t.Setenv("LOGIN_URL", "https://console.example/login")
	t.Setenv("OWNERS_URL", "https://console.example/owners")
	t.Setenv("LOGIN_EMAIL", "ops@example.com")
	t.Setenv("LOGIN_PASSWORD", "secret")
	t.Setenv("WEBHOOK_URL", "https://hooks.example/revenue")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	cfg, err := Load("", "")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, DefaultTimezone, cfg.Timezone)
	require.False(t, cfg.UseSSOLogin)
	require.Equal(t, 120*time.Second, cfg.MFAWait)
	require.Equal(t, 60*time.Second, cfg.WebhookTimeout)
	require.Equal(t, "sqlite", cfg.SessionStore)
	require.True(t, cfg.Headless)
	require.Empty(t, cfg.SelectorOverrides)
}

func TestValidateReportsEveryMissingField(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOGIN_URL", "https://console.example/login")

	cfg, err := Load("", "")
	require.NoError(t, err)

	err = cfg.Validate()
	require.ErrorIs(t, err, ErrMissingField)
	for _, field := range []string{"ownersUrl", "email", "password", "webhookUrl"} {
		require.Contains(t, err.Error(), field)
	}
	require.NotContains(t, err.Error(), "loginUrl")
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{"store", map[string]string{"SESSION_STORE": "redis"}},
		{"mfa", map[string]string{"MFA_WAIT_SECONDS": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load("", "")
			require.NoError(t, err)
			err = cfg.Validate()
			require.Error(t, err)
			require.NotErrorIs(t, err, ErrMissingField)
		})
	}
}

func TestLoadInputFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "input.json")
	require.NoError(t, os.WriteFile(input, []byte(`{
		"loginUrl": "https://console.example/login",
		"ownersUrl": "https://console.example/owners",
		"email": "ops@example.com",
		"password": "secret",
		"n8nWebhookUrl": "https://hooks.example/from-input",
		"timezone": "UTC",
		"selectors": {"ownerRow": "css=tr.owner"},
		"selectorOverrides": {"monthHeader": "css=.month"},
		"useSSOLogin": true,
		"mfaWaitSeconds": 300
	}`), 0644))
	t.Setenv("WEBHOOK_URL", "https://hooks.example/from-env")

	cfg, err := Load("", input)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "https://hooks.example/from-env", cfg.WebhookURL)
	require.Equal(t, "UTC", cfg.Timezone)
	require.True(t, cfg.UseSSOLogin)
	require.Equal(t, 300*time.Second, cfg.MFAWait)
	require.Equal(t, map[string]string{"ownerRow": "css=tr.owner", "monthHeader": "css=.month"}, cfg.SelectorOverrides)
}

func TestLoadSelectorOverridesEnv(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("SELECTOR_OVERRIDES", `{"prevMonthBtn": "css=.prev"}`)

	cfg, err := Load("", "")
	require.NoError(t, err)
	require.Equal(t, "css=.prev", cfg.SelectorOverrides["prevMonthBtn"])

	t.Setenv("SELECTOR_OVERRIDES", `["not", "an", "object"]`)
	_, err = Load("", "")
	require.Error(t, err)
}

func TestLoadExplicitEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "custom.env")
	require.NoError(t, os.WriteFile(path, []byte("LOGIN_URL=https://from-file/login\n"), 0644))

	cfg, err := Load(path, "")
	require.NoError(t, err)
	require.Equal(t, "https://from-file/login", cfg.LoginURL)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"), "")
	require.Error(t, err)
}

// testChdir mirrors testing.T.Chdir (Go 1.24+): change into dir and restore
// the previous working directory when the test finishes.
func testChdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
