// Package notifier delivers the outcome of an import run to the operators
// as an email with a per-transaction CSV attachment. It implements
// domain.Notifier.
package notifier

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/gomail.v2"

	"github.com/animalaidunlimited/virtuous-paypal-import/internal/domain"
)

// attachmentName is the filename of the audit-trail CSV attached to every
// outcome email.
const attachmentName = "ProcessingResults.csv"

// Options configures an EmailNotifier.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
	Subject  string
}

// sender abstracts gomail's DialAndSend for testing.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier sends the run outcome email over SMTP.
type EmailNotifier struct {
	opts   Options
	sender sender
}

// NewEmailNotifier creates an EmailNotifier that dials the configured SMTP
// host for every send.
func NewEmailNotifier(opts Options) *EmailNotifier {
	if opts.Subject == "" {
		opts.Subject = "Virtuous PayPal Import Complete"
	}
	return &EmailNotifier{
		opts:   opts,
		sender: gomail.NewDialer(opts.Host, opts.Port, opts.Username, opts.Password),
	}
}

// Send builds and delivers the outcome email for the completed run.
func (n *EmailNotifier) Send(_ context.Context, report *domain.RunReport) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.opts.From)
	m.SetHeader("To", n.opts.To)
	m.SetHeader("Subject", n.opts.Subject)
	m.SetBody("text/plain", BuildEmailBody(report))

	csv := BuildResultsCSV(report.Outcomes)
	m.Attach(attachmentName, gomail.SetCopyFunc(func(w io.Writer) error {
		_, err := io.WriteString(w, csv)
		return err
	}))

	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("sending outcome email: %w", err)
	}
	return nil
}

// eventBucket accumulates the total amount for one event code, labeled with
// its catalog description.
type eventBucket struct {
	code        string
	description string
	amount      decimal.Decimal
}

// BuildEmailBody renders the plain-text outcome email: run duration,
// transaction count, amounts bucketed by event code with a grand total,
// projects added during the run, and per-transaction failures.
func BuildEmailBody(report *domain.RunReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Hi,\n\nThe latest PayPal import into Virtuous has completed, it took %s to run.\n\n",
		formatDuration(report))
	fmt.Fprintf(&b, "There are a total of %d transactions in this run.\n\n", len(report.Transactions))

	total := decimal.Zero
	var buckets []*eventBucket
	byCode := make(map[string]*eventBucket)

	for _, txn := range report.Transactions {
		amount := txn.Info.Amount.Value
		total = total.Add(amount)

		bucket, ok := byCode[txn.Info.EventCode]
		if !ok {
			bucket = &eventBucket{
				code:        txn.Info.EventCode,
				description: domain.EventDescription(txn.Info.EventCode),
			}
			byCode[txn.Info.EventCode] = bucket
			buckets = append(buckets, bucket)
		}
		bucket.amount = bucket.amount.Add(amount)
	}

	fmt.Fprintf(&b, "Total amount: $%s\n", total.StringFixed(2))
	for _, bucket := range buckets {
		fmt.Fprintf(&b, "%s: $%s\n", bucket.description, bucket.amount.StringFixed(2))
	}

	if len(report.ProjectsAdded) > 0 {
		b.WriteString("\n\nThe following projects have been added to Virtuous:\n")
		for _, line := range report.ProjectsAdded {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	if len(report.Failures) > 0 {
		b.WriteString("\n\nThe following transactions had failures:\n")
		for _, failure := range report.Failures {
			fmt.Fprintf(&b, "%s: %s\n", failure.TransactionID, failure.Reason)
		}
	}

	b.WriteString("\nThis message was sent by AAU's Virtuous PayPal import bot.\n")

	return b.String()
}

// BuildResultsCSV renders the audit-trail attachment: one row per processed
// transaction with its final result.
func BuildResultsCSV(outcomes []domain.Outcome) string {
	var b strings.Builder
	b.WriteString("transactionId,result\n")
	for _, outcome := range outcomes {
		fmt.Fprintf(&b, "%s,%s\n", outcome.TransactionID, outcome.Result)
	}
	return b.String()
}

// formatDuration renders the run duration as HH:MM:SS.
func formatDuration(report *domain.RunReport) string {
	seconds := int(report.Duration().Seconds())
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
