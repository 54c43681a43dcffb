package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockVaultClient implements VaultClient for testing.
type mockVaultClient struct {
	secrets map[string]interface{}
	err     error
	path    string
	mount   string
}

func (m *mockVaultClient) GetKVSecret(ctx context.Context, path, mount string) (map[string]interface{}, error) {
	m.path = path
	m.mount = mount
	if m.err != nil {
		return nil, m.err
	}
	return m.secrets, nil
}

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvPayPalAPIURL, "https://api-m.paypal.com/v1")
	t.Setenv(EnvPayPalClient, "pp-client")
	t.Setenv(EnvPayPalSecret, "pp-secret")
	t.Setenv(EnvVirtuousAPIURL, "https://api.virtuoussoftware.com/api")
	t.Setenv(EnvVirtuousUsername, "importer@example.org")
	t.Setenv(EnvVirtuousPassword, "v-secret")
	t.Setenv(EnvSMTPHost, "smtp.example.org")
	t.Setenv(EnvMailFrom, "bot@example.org")
	t.Setenv(EnvMailTo, "ops@example.org")
}

func TestLoad_FromEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv(EnvVaultSecretPath, "")

	cfg, err := LoadWithVaultClient(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, "https://api-m.paypal.com/v1", cfg.PayPal.APIURL)
	assert.Equal(t, "pp-client", cfg.PayPal.ClientID)
	assert.Equal(t, "importer@example.org", cfg.Virtuous.Username)
	assert.Equal(t, "smtp.example.org", cfg.Mail.Host)
	assert.Equal(t, DefaultSMTPPort, cfg.Mail.Port)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultLogAppName, cfg.LogAppName)
	assert.Zero(t, cfg.Concurrency)
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv(EnvVaultSecretPath, "")
	t.Setenv(EnvSMTPPort, "587")
	t.Setenv(EnvConcurrency, "4")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogAppName, "import-test")

	cfg, err := LoadWithVaultClient(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, 587, cfg.Mail.Port)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "import-test", cfg.LogAppName)
}

func TestLoad_InvalidNumbers(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad smtp port", key: EnvSMTPPort, value: "not-a-port"},
		{name: "bad concurrency", key: EnvConcurrency, value: "many"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(EnvVaultSecretPath, "")
			t.Setenv(tt.key, tt.value)

			_, err := LoadWithVaultClient(context.Background(), nil)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv(EnvVaultSecretPath, "")
	t.Setenv(EnvPayPalSecret, "")

	_, err := LoadWithVaultClient(context.Background(), nil)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestLoad_MissingMailSettings(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv(EnvVaultSecretPath, "")
	t.Setenv(EnvMailTo, "")

	_, err := LoadWithVaultClient(context.Background(), nil)
	assert.ErrorIs(t, err, ErrMissingMailSettings)
}

func TestLoad_VaultIsCredentialSource(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv(EnvVaultSecretPath, "import/credentials")
	t.Setenv(EnvVaultSecretMount, "")

	client := &mockVaultClient{secrets: map[string]interface{}{
		EnvPayPalClient:     "vault-client",
		EnvPayPalSecret:     "vault-secret",
		EnvVirtuousPassword: "vault-password",
	}}
	factory := func(ctx context.Context) (VaultClient, error) { return client, nil }

	cfg, err := LoadWithVaultClient(context.Background(), factory)

	require.NoError(t, err)
	assert.Equal(t, "import/credentials", client.path)
	assert.Equal(t, DefaultVaultMount, client.mount)
	assert.Equal(t, "vault-client", cfg.PayPal.ClientID, "Vault value wins over the environment")
	assert.Equal(t, "vault-password", cfg.Virtuous.Password)
	assert.Equal(t, "https://api-m.paypal.com/v1", cfg.PayPal.APIURL, "missing Vault keys fall back to the environment")
}

func TestLoad_VaultSecretNotFound(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv(EnvVaultSecretPath, "import/credentials")

	client := &mockVaultClient{err: assert.AnError}
	factory := func(ctx context.Context) (VaultClient, error) { return client, nil }

	_, err := LoadWithVaultClient(context.Background(), factory)
	assert.ErrorIs(t, err, ErrVaultSecretNotFound)
}

func TestLoad_VaultClientFailure(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv(EnvVaultSecretPath, "import/credentials")

	factory := func(ctx context.Context) (VaultClient, error) { return nil, ErrVaultClientFailed }

	_, err := LoadWithVaultClient(context.Background(), factory)
	assert.ErrorIs(t, err, ErrVaultClientFailed)
}

func TestSecretSource_Get(t *testing.T) {
	t.Setenv("SOME_KEY", "env-value")

	tests := []struct {
		name   string
		source secretSource
		want   string
	}{
		{name: "no vault falls back to env", source: secretSource{}, want: "env-value"},
		{
			name:   "vault value wins",
			source: secretSource{vault: map[string]interface{}{"SOME_KEY": "vault-value"}},
			want:   "vault-value",
		},
		{
			name:   "empty vault value falls back",
			source: secretSource{vault: map[string]interface{}{"SOME_KEY": ""}},
			want:   "env-value",
		},
		{
			name:   "non-string vault value falls back",
			source: secretSource{vault: map[string]interface{}{"SOME_KEY": 42}},
			want:   "env-value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.source.get("SOME_KEY"))
		})
	}
}
