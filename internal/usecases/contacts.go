package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/animalaidunlimited/virtuous-paypal-import/internal/domain"
)

// ContactResolver determines the Virtuous contact for a transaction.
//
// Contacts are only created for store-purchase transactions, because those
// need a contact note and a note must have a contact to hang off. For every
// other channel an unmatched email is left unresolved: Virtuous matches
// donors on more criteria than email alone, and creating a contact here
// would risk a duplicate for a donor who gave under a different address.
type ContactResolver struct {
	crm domain.CRMClient
	log Logger
}

// NewContactResolver creates a ContactResolver backed by the given CRM
// client.
func NewContactResolver(crm domain.CRMClient, log Logger) *ContactResolver {
	return &ContactResolver{crm: crm, log: log}
}

// Resolve returns the Virtuous contact id for the transaction, or zero when
// no contact could be resolved. Lookup timeouts are retried exactly once; a
// second failure is recorded and resolution yields no contact so the run can
// continue. Creation failures for store purchases are likewise recorded, not
// fatal.
func (r *ContactResolver) Resolve(ctx context.Context, txn domain.Transaction, rec Recorder) int {
	contact, err := r.crm.FindContactByEmail(ctx, txn.Payer.Email)
	if errors.Is(err, domain.ErrTimeout) {
		r.log.Warn(ctx, "contact lookup timed out, retrying once", map[string]interface{}{
			"transaction_id": txn.ID(),
		})
		contact, err = r.crm.FindContactByEmail(ctx, txn.Payer.Email)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			rec.RecordFailure(txn.ID(), fmt.Sprintf("Error finding a contact (timeout retry): %v", err))
			return 0
		}
	}

	switch {
	case err == nil:
		// A zero id means the CRM answered but the payload was unusable;
		// treat that the same as leaving the match to Virtuous.
		return contact.ID

	case errors.Is(err, domain.ErrNotFound):
		if !txn.IsStorePurchase() {
			return 0
		}
		return r.create(ctx, txn, rec)

	default:
		rec.RecordFailure(txn.ID(), fmt.Sprintf("Error finding a contact: %v", err))
		return 0
	}
}

// create builds a new household contact from the transaction's payer and
// shipping data and posts it to Virtuous.
func (r *ContactResolver) create(ctx context.Context, txn domain.Transaction, rec Recorder) int {
	firstName := domain.TitleCase(txn.Payer.Name.GivenName)
	if firstName == "" {
		firstName = domain.TitleCase(txn.Payer.Name.AlternateFullName)
	}
	lastName := domain.TitleCase(txn.Payer.Name.Surname)
	if lastName == "" {
		lastName = "Unknown"
	}

	contact, err := r.crm.CreateContact(ctx, domain.NewContact{
		Name:      domain.TitleCase(txn.Payer.Name.AlternateFullName),
		FirstName: firstName,
		LastName:  lastName,
		Email:     txn.Payer.Email,
		Address:   txn.Shipping.Address,
	})
	if err != nil {
		rec.RecordFailure(txn.ID(), fmt.Sprintf("Error creating a contact for store-purchase transaction: %v", err))
		return 0
	}

	r.log.Info(ctx, "created contact for store purchase", map[string]interface{}{
		"transaction_id": txn.ID(),
		"contact_id":     contact.ID,
	})

	return contact.ID
}
