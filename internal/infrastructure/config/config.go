// Package config provides configuration loading for the import. API
// credentials come from HashiCorp Vault when it is configured and from
// environment variables otherwise; everything else is plain environment
// variables with defaults. A local .env file is honored for development.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/MyCarrier-DevOps/goLibMyCarrier/vault"
	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvPayPalAPIURL = "PAYPAL_API_URL"
	EnvPayPalClient = "PAYPAL_CLIENT_ID"
	EnvPayPalSecret = "PAYPAL_CLIENT_SECRET"

	EnvVirtuousAPIURL   = "VIRTUOUS_API_URL"
	EnvVirtuousTokenURL = "VIRTUOUS_TOKEN_URL"
	EnvVirtuousUsername = "VIRTUOUS_USERNAME"
	EnvVirtuousPassword = "VIRTUOUS_PASSWORD"

	EnvSMTPHost     = "SMTP_HOST"
	EnvSMTPPort     = "SMTP_PORT"
	EnvSMTPUsername = "SMTP_USERNAME"
	EnvSMTPPassword = "SMTP_PASSWORD"
	EnvMailFrom     = "MAIL_FROM"
	EnvMailTo       = "MAIL_TO"

	// EnvLogLevel is the log level (debug, info, error).
	EnvLogLevel = "LOG_LEVEL"

	// EnvLogAppName is the application name for log context.
	EnvLogAppName = "LOG_APP_NAME"

	// EnvConcurrency bounds the per-phase worker fan-out.
	EnvConcurrency = "IMPORT_CONCURRENCY"

	// EnvVaultSecretPath is the path in Vault KV where the API credentials
	// are stored. When set, Vault is the credential source of record.
	EnvVaultSecretPath = "VAULT_SECRET_PATH"

	// EnvVaultSecretMount is the Vault KV mount point (defaults to "secret").
	EnvVaultSecretMount = "VAULT_SECRET_MOUNT"
)

// Default values.
const (
	DefaultLogLevel   = "info"
	DefaultLogAppName = "paypal-import"
	DefaultVaultMount = "secret"
	DefaultSMTPPort   = 465
)

// Configuration errors.
var (
	// ErrMissingCredentials indicates neither Vault nor the environment
	// supplied a required credential.
	ErrMissingCredentials = errors.New(
		"API credentials required: set VAULT_SECRET_PATH (with VAULT_ADDRESS, VAULT_ROLE_ID, VAULT_SECRET_ID) " +
			"or the PAYPAL_*/VIRTUOUS_* environment variables",
	)

	// ErrMissingMailSettings indicates the SMTP settings are incomplete.
	ErrMissingMailSettings = errors.New("mail settings required: set SMTP_HOST, MAIL_FROM and MAIL_TO")

	// ErrVaultClientFailed indicates failure to create or authenticate with Vault.
	ErrVaultClientFailed = errors.New("failed to create Vault client")

	// ErrVaultSecretNotFound indicates the secret was not found in Vault.
	ErrVaultSecretNotFound = errors.New("API credentials not found in Vault")
)

// VaultClient defines the interface for Vault operations. This interface
// allows for dependency injection and testing.
type VaultClient interface {
	// GetKVSecret retrieves a secret from Vault's KV v2 secrets engine.
	GetKVSecret(ctx context.Context, path, mount string) (map[string]interface{}, error)
}

// VaultClientFactory creates a VaultClient using AppRole authentication.
type VaultClientFactory func(ctx context.Context) (VaultClient, error)

// DefaultVaultClientFactory creates a VaultClient using goLibMyCarrier/vault
// with AppRole auth. Uses VAULT_ADDRESS, VAULT_ROLE_ID and VAULT_SECRET_ID.
func DefaultVaultClientFactory(ctx context.Context) (VaultClient, error) {
	vaultConfig, err := vault.VaultLoadConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVaultClientFailed, err)
	}

	client, err := vault.CreateVaultClient(ctx, vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVaultClientFailed, err)
	}

	return client, nil
}

// PayPal holds the processor connection settings.
type PayPal struct {
	APIURL   string
	ClientID string
	Secret   string
}

// Virtuous holds the CRM connection settings.
type Virtuous struct {
	APIURL   string
	TokenURL string
	Username string
	Password string
}

// Mail holds the outcome email settings.
type Mail struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// Config holds all application configuration.
type Config struct {
	PayPal   PayPal
	Virtuous Virtuous
	Mail     Mail

	// Concurrency bounds the per-phase worker fan-out. Zero means the
	// runner default.
	Concurrency int

	// LogLevel is the logging level (debug, info, error).
	LogLevel string

	// LogAppName is the application name for log context.
	LogAppName string
}

// Load loads the application configuration. Credentials are loaded from
// Vault when VAULT_SECRET_PATH is set, from the environment otherwise.
func Load() (*Config, error) {
	return LoadWithVaultClient(context.Background(), nil)
}

// LoadWithVaultClient loads configuration using the provided VaultClient
// factory. If vaultClientFactory is nil, DefaultVaultClientFactory is used.
// This function enables dependency injection for testing.
func LoadWithVaultClient(ctx context.Context, vaultClientFactory VaultClientFactory) (*Config, error) {
	// Best-effort: a missing .env is the normal case outside development.
	_ = godotenv.Load()

	secrets, err := loadSecrets(ctx, vaultClientFactory)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		PayPal: PayPal{
			APIURL:   secrets.get(EnvPayPalAPIURL),
			ClientID: secrets.get(EnvPayPalClient),
			Secret:   secrets.get(EnvPayPalSecret),
		},
		Virtuous: Virtuous{
			APIURL:   secrets.get(EnvVirtuousAPIURL),
			TokenURL: secrets.get(EnvVirtuousTokenURL),
			Username: secrets.get(EnvVirtuousUsername),
			Password: secrets.get(EnvVirtuousPassword),
		},
		Mail: Mail{
			Host:     secrets.get(EnvSMTPHost),
			Port:     DefaultSMTPPort,
			Username: secrets.get(EnvSMTPUsername),
			Password: secrets.get(EnvSMTPPassword),
			From:     os.Getenv(EnvMailFrom),
			To:       os.Getenv(EnvMailTo),
		},
		LogLevel:   os.Getenv(EnvLogLevel),
		LogAppName: os.Getenv(EnvLogAppName),
	}

	if port := os.Getenv(EnvSMTPPort); port != "" {
		parsed, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvSMTPPort, port, err)
		}
		cfg.Mail.Port = parsed
	}

	if c := os.Getenv(EnvConcurrency); c != "" {
		parsed, err := strconv.Atoi(c)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvConcurrency, c, err)
		}
		cfg.Concurrency = parsed
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.LogAppName == "" {
		cfg.LogAppName = DefaultLogAppName
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.PayPal.APIURL == "" || c.PayPal.ClientID == "" || c.PayPal.Secret == "" {
		return ErrMissingCredentials
	}
	if c.Virtuous.APIURL == "" || c.Virtuous.Username == "" || c.Virtuous.Password == "" {
		return ErrMissingCredentials
	}
	if c.Mail.Host == "" || c.Mail.From == "" || c.Mail.To == "" {
		return ErrMissingMailSettings
	}
	return nil
}

// secretSource resolves credential keys from a Vault secret first and the
// environment second, so a partial Vault secret can still be completed from
// the environment.
type secretSource struct {
	vault map[string]interface{}
}

func (s secretSource) get(key string) string {
	if s.vault != nil {
		if value, ok := s.vault[key].(string); ok && value != "" {
			return value
		}
	}
	return os.Getenv(key)
}

// loadSecrets reads the credential secret from Vault when VAULT_SECRET_PATH
// is configured; otherwise every key falls through to the environment.
func loadSecrets(ctx context.Context, vaultClientFactory VaultClientFactory) (secretSource, error) {
	path := os.Getenv(EnvVaultSecretPath)
	if path == "" {
		return secretSource{}, nil
	}

	if vaultClientFactory == nil {
		vaultClientFactory = DefaultVaultClientFactory
	}

	client, err := vaultClientFactory(ctx)
	if err != nil {
		return secretSource{}, err
	}

	mount := os.Getenv(EnvVaultSecretMount)
	if mount == "" {
		mount = DefaultVaultMount
	}

	secretData, err := client.GetKVSecret(ctx, path, mount)
	if err != nil {
		return secretSource{}, fmt.Errorf("%w at path %s: %w", ErrVaultSecretNotFound, path, err)
	}

	return secretSource{vault: secretData}, nil
}
