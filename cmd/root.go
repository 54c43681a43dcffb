// Package cmd provides the CLI command for the PayPal to Virtuous import.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/animalaidunlimited/virtuous-paypal-import/internal/domain"
)

// Logger defines the logging interface used by the command.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// AppConfig holds application configuration loaded by ConfigLoader. The
// collaborator settings are opaque to the command; the factories in main
// know their concrete types.
type AppConfig struct {
	// PayPalConfig is passed to the SourceFactory.
	PayPalConfig any

	// VirtuousConfig is passed to the CRMFactory.
	VirtuousConfig any

	// MailConfig is passed to the NotifierFactory.
	MailConfig any

	// Concurrency bounds the per-phase worker fan-out when the flag is not
	// given.
	Concurrency int

	// LogLevel is the log level setting.
	LogLevel string

	// LogAppName is the application name for logging.
	LogAppName string
}

// Dependencies holds all injectable dependencies for the command. This
// enables testing by allowing mock implementations to be injected.
type Dependencies struct {
	// LoggerFactory creates a logger instance.
	LoggerFactory func() Logger

	// ConfigLoader loads application configuration.
	ConfigLoader func() (*AppConfig, error)

	// ResolveWindow turns the optional start/end date flags into the
	// concrete reporting window.
	ResolveWindow func(startDate, endDate string) (time.Time, time.Time, error)

	// SourceFactory creates the payment-processor client.
	SourceFactory func(cfg *AppConfig, log Logger) (domain.TransactionSource, error)

	// CRMFactory creates the Virtuous client.
	CRMFactory func(cfg *AppConfig, log Logger) (domain.CRMClient, error)

	// RunnerFactory creates the reconciliation runner.
	RunnerFactory func(crm domain.CRMClient, log Logger, concurrency int) domain.Reconciler

	// NotifierFactory creates the outcome-email notifier.
	NotifierFactory func(cfg *AppConfig) (domain.Notifier, error)

	// SummaryWriterFactory creates the run-summary writer.
	SummaryWriterFactory func() domain.SummaryWriter

	// Stdout is the writer for standard output.
	Stdout io.Writer

	// Stderr is the writer for warnings/errors.
	Stderr io.Writer
}

// Command-line flags.
var (
	startDate   string
	endDate     string
	concurrency int
	skipEmail   bool
	verbose     bool
)

// defaultDeps holds the production dependencies. This is set by the
// production wiring in main via SetDefaultDependencies.
var defaultDeps *Dependencies

// SetDefaultDependencies sets the default dependencies for production use.
// This should be called from main() before Execute().
func SetDefaultDependencies(deps *Dependencies) {
	defaultDeps = deps
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	return NewRootCmdWithDeps(defaultDeps)
}

// NewRootCmdWithDeps creates the root command with explicit dependencies.
// This is the primary constructor that enables testing via dependency
// injection.
func NewRootCmdWithDeps(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "paypal-import",
		Short: "Import PayPal donations into Virtuous",
		Long: `paypal-import synchronizes PayPal donation transactions into Virtuous.

It fetches the settled transactions for a date window, filters them down to
postable donations, resolves each one to a Virtuous contact and project,
posts one-time and recurring gifts (and contact notes for store purchases),
and emails a summary of the run with a per-transaction CSV attachment.

Without date flags the run covers the whole of yesterday (UTC), which is
what the nightly schedule relies on.

Examples:
  # Import yesterday's transactions
  paypal-import

  # Import a specific window
  paypal-import --start-date 2024-03-01 --end-date 2024-03-03

  # Re-run without emailing anyone
  paypal-import --start-date 2024-03-01 --skip-email`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, deps)
		},
	}

	rootCmd.Flags().StringVar(&startDate, "start-date", "",
		"Start of the reporting window (YYYY-MM-DD, defaults to yesterday)")
	rootCmd.Flags().StringVar(&endDate, "end-date", "",
		"End of the reporting window (YYYY-MM-DD, defaults to yesterday)")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 0,
		"Maximum concurrent CRM calls per pipeline phase (0 uses the configured default)")
	rootCmd.Flags().BoolVar(&skipEmail, "skip-email", false,
		"Run the import without sending the outcome email")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable verbose/debug logging")

	return rootCmd
}

// runImport executes one import run with injected dependencies.
func runImport(cmd *cobra.Command, deps *Dependencies) error {
	if deps == nil {
		return errors.New("dependencies not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	stderr := deps.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	// Set log level based on verbose flag (best-effort)
	if verbose {
		if err := os.Setenv("LOG_LEVEL", "debug"); err != nil {
			writeWarningf(stderr, "warning: could not set log level: %v\n", err)
		}
	}

	log := deps.LoggerFactory()

	log.Info(ctx, "starting paypal-import", map[string]interface{}{
		"start_date": startDate,
		"end_date":   endDate,
		"skip_email": skipEmail,
		"verbose":    verbose,
	})

	cfg, err := deps.ConfigLoader()
	if err != nil {
		log.Error(ctx, "failed to load configuration", err, nil)
		return fmt.Errorf("configuration error: %w", err)
	}

	windowStart, windowEnd, err := deps.ResolveWindow(startDate, endDate)
	if err != nil {
		log.Error(ctx, "invalid reporting window", err, map[string]interface{}{
			"start_date": startDate,
			"end_date":   endDate,
		})
		return err
	}

	source, err := deps.SourceFactory(cfg, log)
	if err != nil {
		log.Error(ctx, "failed to initialize processor client", err, nil)
		return err
	}
	if err := source.Authenticate(ctx); err != nil {
		log.Error(ctx, "processor authentication failed", err, nil)
		return fmt.Errorf("processor authentication failed: %w", err)
	}

	crm, err := deps.CRMFactory(cfg, log)
	if err != nil {
		log.Error(ctx, "failed to initialize CRM client", err, nil)
		return err
	}
	if err := crm.Authenticate(ctx); err != nil {
		log.Error(ctx, "CRM authentication failed", err, nil)
		return fmt.Errorf("CRM authentication failed: %w", err)
	}

	transactions, err := source.FetchTransactions(ctx, windowStart, windowEnd)
	if err != nil {
		log.Error(ctx, "failed to fetch transactions", err, map[string]interface{}{
			"window_start": windowStart,
			"window_end":   windowEnd,
		})
		return fmt.Errorf("fetching transactions: %w", err)
	}

	runConcurrency := concurrency
	if runConcurrency <= 0 {
		runConcurrency = cfg.Concurrency
	}

	runner := deps.RunnerFactory(crm, log, runConcurrency)
	report := runner.Run(ctx, transactions)

	if skipEmail {
		log.Info(ctx, "skipping outcome email", map[string]interface{}{
			"run_id": report.RunID,
		})
	} else {
		notifier, err := deps.NotifierFactory(cfg)
		if err != nil {
			log.Error(ctx, "failed to initialize notifier", err, nil)
			return err
		}
		if err := notifier.Send(ctx, report); err != nil {
			log.Error(ctx, "failed to send outcome email", err, map[string]interface{}{
				"run_id": report.RunID,
			})
			return fmt.Errorf("sending outcome email: %w", err)
		}
	}

	writer := deps.SummaryWriterFactory()
	if err := writer.WriteSummary(report); err != nil {
		log.Error(ctx, "failed to write summary", err, nil)
		return fmt.Errorf("output error: %w", err)
	}

	log.Info(ctx, "import complete", map[string]interface{}{
		"run_id":         report.RunID,
		"processed":      len(report.Transactions),
		"failures":       len(report.Failures),
		"projects_added": len(report.ProjectsAdded),
	})

	return nil
}

// Execute runs the root command.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// writeWarningf writes a warning message to the given writer. This is a
// best-effort operation; errors are intentionally ignored because there is
// no recovery action if stderr writes fail.
func writeWarningf(w io.Writer, format string, args ...any) {
	_, err := fmt.Fprintf(w, format, args...)
	if err != nil {
		return
	}
}
