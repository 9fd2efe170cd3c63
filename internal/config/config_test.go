package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Helper function tests
// ---------------------------------------------------------------------------

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string // nil = don't set; pointer to distinguish "" from unset
		fallback string
		want     string
	}{
		{name: "returns fallback when unset", key: "MB_TEST_GETENV_UNSET", setVal: nil, fallback: "default", want: "default"},
		{name: "returns env value when set", key: "MB_TEST_GETENV_SET", setVal: strPtr("custom"), fallback: "default", want: "custom"},
		{name: "returns fallback when empty string", key: "MB_TEST_GETENV_EMPTY", setVal: strPtr(""), fallback: "default", want: "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got := getEnv(tc.key, tc.fallback)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback time.Duration
		want     time.Duration
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "MB_TEST_DUR_UNSET", setVal: nil, fallback: 5 * time.Minute, want: 5 * time.Minute},
		{name: "parses minutes", key: "MB_TEST_DUR_MIN", setVal: strPtr("30m"), fallback: 0, want: 30 * time.Minute},
		{name: "parses composite", key: "MB_TEST_DUR_COMP", setVal: strPtr("1h30m"), fallback: 0, want: 90 * time.Minute},
		{name: "errors on bare number", key: "MB_TEST_DUR_NUM", setVal: strPtr("30"), fallback: 0, wantErr: true},
		{name: "errors on garbage", key: "MB_TEST_DUR_GARBAGE", setVal: strPtr("soon"), fallback: 0, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvDuration(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// ---------------------------------------------------------------------------
// Load + validate
// ---------------------------------------------------------------------------

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MB_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("MB_VAULT_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("MB_SELF_HOSTED", "true")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 25, cfg.Database.MaxConns)
	assert.Equal(t, 5*time.Minute, cfg.Provision.Timeout)
	assert.Equal(t, 30*time.Minute, cfg.Provision.ReapAfter)
	assert.Equal(t, 14*24*time.Hour, cfg.Provision.DemoTTL)
	assert.Equal(t, 48*time.Hour, cfg.Verify.TokenTTL)
	assert.Equal(t, 10*time.Second, cfg.Verify.PollInterval)
	assert.Equal(t, 30, cfg.Verify.PollAttempts)
	assert.Equal(t, 7*24*time.Hour, cfg.Billing.GracePeriod)
	assert.Equal(t, 24*time.Hour, cfg.Billing.ReconcileInterval)
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	t.Setenv("MB_JWT_SECRET", "")
	t.Setenv("MB_VAULT_KEY", "0123456789abcdef0123456789abcdef")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MB_JWT_SECRET")
}

func TestLoad_ShortJWTSecret(t *testing.T) {
	t.Setenv("MB_JWT_SECRET", "short")
	t.Setenv("MB_VAULT_KEY", "0123456789abcdef0123456789abcdef")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 characters")
}

func TestLoad_BadVaultKey(t *testing.T) {
	t.Setenv("MB_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("MB_VAULT_KEY", "tooshort")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MB_VAULT_KEY")
}

func TestLoad_ReapShorterThanTimeout(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MB_PROVISION_TIMEOUT", "10m")
	t.Setenv("MB_PROVISION_REAP", "5m")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MB_PROVISION_REAP")
}

func TestLoad_BootstrapAdmin(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MB_BOOTSTRAP_ADMIN_EMAIL", "root@mechanicbuddy.app")
	t.Setenv("MB_BOOTSTRAP_ADMIN_PASSWORD", "bootstrap-S3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "root@mechanicbuddy.app", cfg.Bootstrap.AdminEmail)
	assert.Equal(t, "Administrator", cfg.Bootstrap.AdminName)
}

func TestLoad_BootstrapAdminWeakPassword(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MB_BOOTSTRAP_ADMIN_EMAIL", "root@mechanicbuddy.app")
	t.Setenv("MB_BOOTSTRAP_ADMIN_PASSWORD", "short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MB_BOOTSTRAP_ADMIN_PASSWORD")
}

func TestLoad_InvalidPort(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MB_DB_PORT", "70000")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MB_DB_PORT")
}

func strPtr(s string) *string { return &s }
