// Package domain defines the core business entities and interfaces for the
// PayPal to Virtuous donation import. This package contains no external
// collaborator dependencies and represents the innermost layer of the
// application.
package domain

import (
	"context"
	"errors"
	"time"
)

// Domain errors for collaborator calls. Not-found and timeout are control
// signals, not failures: not-found triggers creation or fallback, and
// timeout triggers a single retry where the pipeline specifies one.
var (
	// ErrNotFound indicates the CRM holds no record matching the query.
	ErrNotFound = errors.New("record not found")

	// ErrTimeout indicates a network-level timeout. Calls that specify a
	// retry do so at most once on this error class.
	ErrTimeout = errors.New("request timed out")

	// ErrUnexpectedStatus indicates the collaborator answered with a
	// non-success status that is not a plain not-found.
	ErrUnexpectedStatus = errors.New("unexpected response status")

	// ErrNotAuthenticated indicates a client was used before its
	// Authenticate call succeeded.
	ErrNotAuthenticated = errors.New("client is not authenticated")
)

// TransactionSource fetches the raw transaction batch from the payment
// processor. Implementations return the full deduplicated list across all
// result pages, pre-filtered to settled ("S") and voided ("V") statuses.
type TransactionSource interface {
	// Authenticate acquires the bearer credential for the run.
	Authenticate(ctx context.Context) error

	// FetchTransactions returns all transactions initiated inside the
	// half-open window [start, end].
	FetchTransactions(ctx context.Context, start, end time.Time) ([]Transaction, error)
}

// CRMClient is the Virtuous surface the reconciliation core consumes. Every
// method returns either a success payload or a distinguished error;
// ErrNotFound is returned for the CRM's 404-equivalent responses.
type CRMClient interface {
	// Authenticate acquires the bearer credential for the run.
	Authenticate(ctx context.Context) error

	// FindContactByEmail looks a contact up by email address. A contact with
	// a zero ID and a nil error means the CRM answered but the payload could
	// not be interpreted; callers treat that as no match.
	FindContactByEmail(ctx context.Context, email string) (*Contact, error)

	// CreateContact creates a household contact and returns it with its new
	// id populated.
	CreateContact(ctx context.Context, contact NewContact) (*Contact, error)

	// FindProjectByCode looks a project up by its code.
	FindProjectByCode(ctx context.Context, code string) (*Project, error)

	// CreateProject creates a project with the given name, which doubles as
	// its code and revenue accounting code.
	CreateProject(ctx context.Context, name string) (*Project, error)

	// CreateGift posts a gift transaction.
	CreateGift(ctx context.Context, gift Gift) error

	// CreateContactNote posts a note against a contact.
	CreateContactNote(ctx context.Context, note ContactNote) error

	// RecurringGiftsByContact returns the contact's recurring-gift lineage,
	// oldest first. A single page of up to 50 entries is assumed sufficient.
	RecurringGiftsByContact(ctx context.Context, contactID int) ([]RecurringGift, error)
}

// Reconciler runs the reconciliation pipeline over one raw transaction
// batch. The returned report is always complete: no per-transaction failure
// aborts a run.
type Reconciler interface {
	Run(ctx context.Context, transactions []Transaction) *RunReport
}

// Notifier delivers the completed run report to the operators.
type Notifier interface {
	Send(ctx context.Context, report *RunReport) error
}

// SummaryWriter writes a short machine-readable run summary to an output
// destination, typically stdout for the scheduler to capture.
type SummaryWriter interface {
	WriteSummary(report *RunReport) error
}
