// Package domain defines the core business entities and interfaces for the
// PayPal to Virtuous donation import.
package domain

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// StorePurchaseChannel is the custom-field value PayPal reports for
// transactions that originated from the online shop. Store purchases are
// posted to Virtuous as contact notes rather than gifts, and they are the
// only channel for which a missing contact is created rather than left to
// Virtuous' own matching.
const StorePurchaseChannel = "Shopify"

// Money is a monetary value as reported by PayPal: an amount paired with an
// ISO currency code. PayPal serializes amounts as strings; decimal.Decimal
// round-trips them without floating-point loss.
type Money struct {
	CurrencyCode string          `json:"currency_code"`
	Value        decimal.Decimal `json:"value"`
}

// Transaction is a single transaction returned by the PayPal transaction
// search API. It is treated as immutable once fetched; all run-scoped
// processing state lives in a separate Annotation joined by transaction id.
type Transaction struct {
	Info     TransactionInfo `json:"transaction_info"`
	Payer    PayerInfo       `json:"payer_info"`
	Shipping ShippingInfo    `json:"shipping_info"`
	Cart     CartInfo        `json:"cart_info"`
}

// TransactionInfo carries the transaction identifiers, classification and
// monetary value.
type TransactionInfo struct {
	TransactionID   string `json:"transaction_id"`
	EventCode       string `json:"transaction_event_code"`
	Status          string `json:"transaction_status"`
	Subject         string `json:"transaction_subject"`
	Note            string `json:"transaction_note"`
	CustomField     string `json:"custom_field"`
	InitiationDate  string `json:"transaction_initiation_date"`
	Amount          Money  `json:"transaction_amount"`
	ReferenceID     string `json:"paypal_reference_id"`
	ReferenceIDType string `json:"paypal_reference_id_type"`
	PayPalAccountID string `json:"paypal_account_id"`
}

// PayerInfo identifies the donor as known to PayPal.
type PayerInfo struct {
	Email string    `json:"email_address"`
	Name  PayerName `json:"payer_name"`
}

// PayerName holds the payer's name parts.
type PayerName struct {
	GivenName         string `json:"given_name"`
	Surname           string `json:"surname"`
	AlternateFullName string `json:"alternate_full_name"`
}

// ShippingInfo holds the optional postal address attached to a transaction.
type ShippingInfo struct {
	Address Address `json:"address"`
}

// Address is a postal address in the shape shared by PayPal shipping info
// and Virtuous contact addresses.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country_code"`
}

// CartInfo lists the purchased items for store-purchase transactions.
type CartInfo struct {
	Items []CartItem `json:"item_details"`
}

// CartItem is one purchased line item.
type CartItem struct {
	Name   string `json:"item_name"`
	Amount Money  `json:"item_amount"`
}

// ID returns the processor-assigned transaction identifier.
func (t Transaction) ID() string {
	return t.Info.TransactionID
}

// IsStorePurchase reports whether the transaction originated from the online
// shop rather than a donation channel.
func (t Transaction) IsStorePurchase() bool {
	return t.Info.CustomField == StorePurchaseChannel
}

// IsRecurring reports whether the transaction is an installment of a
// recurring gift. PayPal marks installments with a reference id pointing at
// the originating subscription transaction.
func (t Transaction) IsRecurring() bool {
	return t.Info.ReferenceID != ""
}

// Annotation is the run-scoped processing state attached to one transaction.
// It is never sent back to PayPal; it exists only for the duration of a run
// and joins pipeline results (resolved contact, project, recurring lineage)
// to the immutable Transaction by transaction id.
type Annotation struct {
	TransactionID string

	// ContactID is the resolved Virtuous contact id, or zero when no contact
	// was resolved and Virtuous' own matching applies at gift-post time.
	ContactID int

	// Project is the resolved designation project, set during gift posting.
	Project *Project

	// RecurringGiftTransactionID is the PayPal reference id linking this
	// installment to its recurring-gift lineage.
	RecurringGiftTransactionID string

	// CreateRecurringGift is true only when the installment is the first one
	// seen for its lineage and Virtuous holds no matching recurring gift.
	CreateRecurringGift bool
}

// Project is a Virtuous project (fund/designation).
type Project struct {
	ID   int
	Name string
	Code string
}

// DefaultProject returns the well-known fallback project used whenever no
// specific project can be inferred from a transaction or when project
// creation fails. Falling back here is deliberate, not an error path.
func DefaultProject() Project {
	return Project{
		ID:   1,
		Name: "Default Project",
		Code: "Default",
	}
}

// IsDefault reports whether the project is the fallback Default project.
func (p Project) IsDefault() bool {
	return p.Code == DefaultProject().Code
}

// Designation allocates part of a gift to a project.
type Designation struct {
	Project Project
	Amount  decimal.Decimal
}

// Contact is a Virtuous contact as returned by the contact search.
type Contact struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewContact describes a contact to be created in Virtuous from a
// transaction's payer and shipping data.
type NewContact struct {
	Name      string
	FirstName string
	LastName  string
	Email     string
	Address   Address
}

// Gift is a donation to be posted to Virtuous. The contact block is always
// populated from the transaction so Virtuous can fall back to its own fuzzy
// matching when ContactID is zero.
type Gift struct {
	TransactionID   string
	PayPalAccountID string

	ContactID   int
	ContactName string
	FirstName   string
	LastName    string
	Email       string
	Address     Address

	GiftDate string
	Amount   decimal.Decimal
	Notes    string

	// ReferenceTransactionID carries the PayPal reference id as a custom
	// field for reconciliation in Virtuous.
	ReferenceTransactionID string

	// RecurringGiftTransactionID ties the gift to its recurring lineage;
	// CreateRecurringGift asks Virtuous to start a new lineage for it.
	RecurringGiftTransactionID string
	CreateRecurringGift        bool

	Designations []Designation
}

// ContactNote is a note posted against a Virtuous contact, used for store
// purchases instead of a gift record.
type ContactNote struct {
	ContactID int
	Text      string
	NoteDate  string
}

// RecurringGift is one entry of a contact's recurring-gift lineage in
// Virtuous.
type RecurringGift struct {
	ID            int    `json:"id"`
	TransactionID string `json:"transactionId"`
}

// Failure records a per-transaction processing failure. Failures never abort
// the run; they are collected and surfaced in the outcome report.
type Failure struct {
	TransactionID string
	Reason        string
}

// Outcome records the final result for one transaction, successful or not,
// for the audit-trail attachment of the outcome email.
type Outcome struct {
	TransactionID string
	Result        string
}

// RunReport accumulates the results of one import run. It is created empty
// at run start, appended to during the concurrent phases, and returned
// complete at run end for the notifier to consume. Only the run that created
// it mutates it.
type RunReport struct {
	RunID     string
	StartTime time.Time
	EndTime   time.Time

	// Transactions is the normalized list the run processed.
	Transactions []Transaction

	Failures      []Failure
	ProjectsAdded []string
	Outcomes      []Outcome
}

// Duration returns the wall-clock time the run took.
func (r *RunReport) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// TitleCase uppercases the first letter of every word in s, treating
// apostrophes as part of the word, so "billy bob" becomes "Billy Bob".
// Payer names arrive from PayPal in whatever casing the donor typed.
func TitleCase(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))

	startOfWord := true
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) && startOfWord:
			b.WriteRune(unicode.ToUpper(r))
			startOfWord = false
		case unicode.IsLetter(r) || r == '\'':
			b.WriteRune(r)
		default:
			b.WriteRune(r)
			startOfWord = true
		}
	}
	return b.String()
}
