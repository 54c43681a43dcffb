package usecases

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animalaidunlimited/virtuous-paypal-import/internal/domain"
)

func makePayerTxn(id, email string) domain.Transaction {
	var txn domain.Transaction
	txn.Info.TransactionID = id
	txn.Payer.Email = email
	txn.Payer.Name.GivenName = "billy"
	txn.Payer.Name.Surname = "bob"
	txn.Payer.Name.AlternateFullName = "billy bob"
	return txn
}

func TestContactResolver_Resolve_ExistingContact(t *testing.T) {
	crm := newMockCRM()
	crm.contacts["donor@example.org"] = domain.Contact{ID: 42, Email: "donor@example.org"}
	rec := &mockRecorder{}

	resolver := NewContactResolver(crm, &mockLogger{})
	id := resolver.Resolve(context.Background(), makePayerTxn("TXN1", "donor@example.org"), rec)

	assert.Equal(t, 42, id)
	assert.Empty(t, rec.failures)
	assert.Empty(t, crm.createdContacts)
}

func TestContactResolver_Resolve_RetriesOnceOnTimeout(t *testing.T) {
	tests := []struct {
		name         string
		queuedErrs   []error
		wantID       int
		wantFailures int
		wantCalls    int
	}{
		{
			name:       "retry succeeds",
			queuedErrs: []error{domain.ErrTimeout, nil},
			wantID:     42,
			wantCalls:  2,
		},
		{
			name:         "retry times out again",
			queuedErrs:   []error{domain.ErrTimeout, domain.ErrTimeout},
			wantID:       0,
			wantFailures: 1,
			wantCalls:    2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crm := newMockCRM()
			crm.contacts["donor@example.org"] = domain.Contact{ID: 42}
			crm.findContactErrs["donor@example.org"] = tt.queuedErrs
			rec := &mockRecorder{}

			resolver := NewContactResolver(crm, &mockLogger{})
			id := resolver.Resolve(context.Background(), makePayerTxn("TXN1", "donor@example.org"), rec)

			assert.Equal(t, tt.wantID, id)
			assert.Len(t, rec.failures, tt.wantFailures)
			assert.Equal(t, tt.wantCalls, crm.findContactCalls["donor@example.org"])
		})
	}
}

func TestContactResolver_Resolve_NotFoundNonStoreLeavesUnresolved(t *testing.T) {
	crm := newMockCRM()
	rec := &mockRecorder{}

	resolver := NewContactResolver(crm, &mockLogger{})
	id := resolver.Resolve(context.Background(), makePayerTxn("TXN1", "unknown@example.org"), rec)

	assert.Zero(t, id)
	assert.Empty(t, crm.createdContacts, "non-store transactions must not create contacts")
	assert.Empty(t, rec.failures)
}

func TestContactResolver_Resolve_CreatesContactForStorePurchase(t *testing.T) {
	crm := newMockCRM()
	rec := &mockRecorder{}

	txn := makePayerTxn("TXN1", "shopper@example.org")
	txn.Info.CustomField = domain.StorePurchaseChannel
	txn.Shipping.Address = domain.Address{Line1: "1 Main St", City: "Udaipur"}

	resolver := NewContactResolver(crm, &mockLogger{})
	id := resolver.Resolve(context.Background(), txn, rec)

	assert.NotZero(t, id)
	require.Len(t, crm.createdContacts, 1)
	created := crm.createdContacts[0]
	assert.Equal(t, "Billy Bob", created.Name)
	assert.Equal(t, "Billy", created.FirstName)
	assert.Equal(t, "Bob", created.LastName)
	assert.Equal(t, "shopper@example.org", created.Email)
	assert.Equal(t, "Udaipur", created.Address.City)
}

func TestContactResolver_Resolve_NameFallbacks(t *testing.T) {
	crm := newMockCRM()
	rec := &mockRecorder{}

	txn := makePayerTxn("TXN1", "shopper@example.org")
	txn.Info.CustomField = domain.StorePurchaseChannel
	txn.Payer.Name.GivenName = ""
	txn.Payer.Name.Surname = ""

	resolver := NewContactResolver(crm, &mockLogger{})
	resolver.Resolve(context.Background(), txn, rec)

	require.Len(t, crm.createdContacts, 1)
	assert.Equal(t, "Billy Bob", crm.createdContacts[0].FirstName)
	assert.Equal(t, "Unknown", crm.createdContacts[0].LastName)
}

func TestContactResolver_Resolve_CreateFailureRecorded(t *testing.T) {
	crm := newMockCRM()
	crm.createContactErr = domain.ErrUnexpectedStatus
	rec := &mockRecorder{}

	txn := makePayerTxn("TXN1", "shopper@example.org")
	txn.Info.CustomField = domain.StorePurchaseChannel

	resolver := NewContactResolver(crm, &mockLogger{})
	id := resolver.Resolve(context.Background(), txn, rec)

	assert.Zero(t, id)
	require.Len(t, rec.failures, 1)
	assert.Contains(t, rec.failures[0].Reason, "Error creating a contact")
}

func TestContactResolver_Resolve_LookupErrorRecorded(t *testing.T) {
	crm := newMockCRM()
	crm.findContactErrs["donor@example.org"] = []error{domain.ErrUnexpectedStatus}
	rec := &mockRecorder{}

	resolver := NewContactResolver(crm, &mockLogger{})
	id := resolver.Resolve(context.Background(), makePayerTxn("TXN1", "donor@example.org"), rec)

	assert.Zero(t, id)
	require.Len(t, rec.failures, 1)
	assert.Contains(t, rec.failures[0].Reason, "Error finding a contact")
}
