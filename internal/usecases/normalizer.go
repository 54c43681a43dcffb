// Package usecases contains the application business logic: the transaction
// reconciliation pipeline that turns a raw PayPal batch into posted Virtuous
// gifts, contacts and notes.
package usecases

import (
	"context"

	"github.com/animalaidunlimited/virtuous-paypal-import/internal/domain"
)

// Logger defines the logging interface required by the pipeline components.
// This abstracts the logger dependency to avoid coupling to a specific
// implementation.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// Recorder collects per-transaction results during a run. The runner owns
// the backing report; pipeline components only ever append through this
// interface.
type Recorder interface {
	// RecordFailure notes a per-transaction failure with a human-readable
	// cause. Failures never abort the run.
	RecordFailure(transactionID, reason string)

	// RecordOutcome notes the final result for one transaction for the
	// audit-trail attachment.
	RecordOutcome(transactionID, result string)

	// RecordProjectAdded notes a human-readable line about a project that
	// was auto-created during the run.
	RecordProjectAdded(line string)
}

// TransactionNormalizer filters a raw transaction batch down to postable
// transactions and resolves each amount to the settlement currency.
type TransactionNormalizer struct{}

// NewTransactionNormalizer creates a TransactionNormalizer.
func NewTransactionNormalizer() *TransactionNormalizer {
	return &TransactionNormalizer{}
}

// Normalize returns the postable subset of raw: transactions whose event
// code is on the allow-list, excluding pure currency-conversion records.
// Each surviving transaction's amount is replaced with the converted
// settlement-currency amount when the raw batch carries a matching
// conversion record; otherwise the original amount is assumed to already be
// in the settlement currency.
//
// Unknown event codes are dropped silently; that is the allow-list policy,
// not an error.
func (n *TransactionNormalizer) Normalize(raw []domain.Transaction) []domain.Transaction {
	normalized := make([]domain.Transaction, 0, len(raw))

	for _, txn := range raw {
		if !domain.IsIncludedEvent(txn.Info.EventCode) {
			continue
		}
		if txn.Info.EventCode == domain.CurrencyConversionEvent {
			continue
		}
		normalized = append(normalized, n.resolveAmount(raw, txn))
	}

	return normalized
}

// resolveAmount searches the original, unfiltered batch for the
// currency-conversion record belonging to txn and returns a copy of txn
// carrying the converted amount. A conversion record matches when it
// references txn's id as a TXN reference, reports in the settlement
// currency, and carries the conversion event code. When no record matches,
// no conversion was needed and txn is returned unchanged.
func (n *TransactionNormalizer) resolveAmount(raw []domain.Transaction, txn domain.Transaction) domain.Transaction {
	for _, candidate := range raw {
		if candidate.Info.ReferenceID == txn.Info.TransactionID &&
			candidate.Info.ReferenceIDType == "TXN" &&
			candidate.Info.EventCode == domain.CurrencyConversionEvent &&
			candidate.Info.Amount.CurrencyCode == domain.SettlementCurrency {
			txn.Info.Amount = candidate.Info.Amount
			return txn
		}
	}
	return txn
}
