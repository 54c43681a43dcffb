// Package main is the entry point for the paypal-import batch job.
// paypal-import synchronizes PayPal donation transactions into the Virtuous
// CRM and emails a summary of every run.
package main

import (
	"os"
	"time"

	"github.com/MyCarrier-DevOps/goLibMyCarrier/logger"

	"github.com/animalaidunlimited/virtuous-paypal-import/cmd"
	logadapter "github.com/animalaidunlimited/virtuous-paypal-import/internal/adapters/logger"
	"github.com/animalaidunlimited/virtuous-paypal-import/internal/adapters/notifier"
	"github.com/animalaidunlimited/virtuous-paypal-import/internal/adapters/output"
	"github.com/animalaidunlimited/virtuous-paypal-import/internal/adapters/paypal"
	"github.com/animalaidunlimited/virtuous-paypal-import/internal/adapters/virtuous"
	"github.com/animalaidunlimited/virtuous-paypal-import/internal/domain"
	"github.com/animalaidunlimited/virtuous-paypal-import/internal/infrastructure/config"
	"github.com/animalaidunlimited/virtuous-paypal-import/internal/usecases"
)

func main() {
	// Create a single shared logger instance for the application
	zapLog := logger.NewZapLoggerFromConfig()
	adapter := logadapter.NewZapAdapter(zapLog)

	// Wire up production dependencies
	deps := &cmd.Dependencies{
		LoggerFactory: func() cmd.Logger {
			return adapter
		},

		ConfigLoader: func() (*cmd.AppConfig, error) {
			cfg, err := config.Load()
			if err != nil {
				return nil, err
			}
			return &cmd.AppConfig{
				PayPalConfig:   cfg.PayPal,
				VirtuousConfig: cfg.Virtuous,
				MailConfig:     cfg.Mail,
				Concurrency:    cfg.Concurrency,
				LogLevel:       cfg.LogLevel,
				LogAppName:     cfg.LogAppName,
			}, nil
		},

		ResolveWindow: func(startDate, endDate string) (time.Time, time.Time, error) {
			return paypal.ReportingWindow(startDate, endDate, time.Now())
		},

		SourceFactory: func(cfg *cmd.AppConfig, _ cmd.Logger) (domain.TransactionSource, error) {
			ppConfig, ok := cfg.PayPalConfig.(config.PayPal)
			if !ok {
				return nil, newConfigTypeError("config.PayPal")
			}
			return paypal.NewClient(paypal.Options{
				BaseURL:  ppConfig.APIURL,
				ClientID: ppConfig.ClientID,
				Secret:   ppConfig.Secret,
			}), nil
		},

		CRMFactory: func(cfg *cmd.AppConfig, _ cmd.Logger) (domain.CRMClient, error) {
			vConfig, ok := cfg.VirtuousConfig.(config.Virtuous)
			if !ok {
				return nil, newConfigTypeError("config.Virtuous")
			}
			return virtuous.NewClient(virtuous.Options{
				BaseURL:  vConfig.APIURL,
				TokenURL: vConfig.TokenURL,
				Username: vConfig.Username,
				Password: vConfig.Password,
			}), nil
		},

		RunnerFactory: func(crm domain.CRMClient, _ cmd.Logger, concurrency int) domain.Reconciler {
			return usecases.NewRunner(crm, adapter, concurrency)
		},

		NotifierFactory: func(cfg *cmd.AppConfig) (domain.Notifier, error) {
			mailConfig, ok := cfg.MailConfig.(config.Mail)
			if !ok {
				return nil, newConfigTypeError("config.Mail")
			}
			return notifier.NewEmailNotifier(notifier.Options{
				Host:     mailConfig.Host,
				Port:     mailConfig.Port,
				Username: mailConfig.Username,
				Password: mailConfig.Password,
				From:     mailConfig.From,
				To:       mailConfig.To,
			}), nil
		},

		SummaryWriterFactory: func() domain.SummaryWriter {
			return output.NewWriter()
		},

		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	cmd.SetDefaultDependencies(deps)
	cmd.Execute()
}

func newConfigTypeError(expected string) error {
	return &configTypeError{expected: expected}
}

// configTypeError is returned when configuration type assertion fails.
type configTypeError struct {
	expected string
}

func (e *configTypeError) Error() string {
	return "invalid configuration type: expected " + e.expected
}
