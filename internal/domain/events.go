package domain

// Transaction event codes this import recognizes. The allow-list below is
// the only inclusion filter: transactions carrying any other code are
// silently dropped during normalization.
// Reference: https://developer.paypal.com/docs/transaction-search/transaction-event-codes/
const (
	// CurrencyConversionEvent marks a pure currency-conversion record. These
	// exist only to supply the converted amount for a companion transaction
	// and are never posted themselves.
	CurrencyConversionEvent = "T0200"

	// DonationEvent is the event code for a plain donation payment.
	DonationEvent = "T0013"
)

// SettlementCurrency is the base currency the PayPal account reports totals
// in. Currency-conversion records in any other currency are ignored.
const SettlementCurrency = "USD"

// EventCode pairs a PayPal transaction event code with its human-readable
// description for summary labeling.
type EventCode struct {
	Code        string
	Description string
}

var includedEventCodes = []EventCode{
	{Code: "T0000", Description: "General"},
	{Code: "T0001", Description: "MassPay payment"},
	{Code: "T0002", Description: "Subscription payment"},
	{Code: "T0003", Description: "Pre-approved payment (BillUser API)"},
	{Code: "T0004", Description: "eBay auction payment"},
	{Code: "T0005", Description: "Direct payment API"},
	{Code: "T0006", Description: "PayPal Checkout APIs"},
	{Code: "T0007", Description: "Website payments standard payment"},
	{Code: "T0008", Description: "Postage payment to carrier"},
	{Code: "T0009", Description: "Gift certificate payment"},
	{Code: "T0010", Description: "Third-party auction payment"},
	{Code: "T0011", Description: "Mobile payment"},
	{Code: "T0012", Description: "Virtual terminal payment"},
	{Code: "T0013", Description: "Donation payment"},
	{Code: "T0014", Description: "Rebate payments"},
	{Code: "T0015", Description: "Third-party payout"},
	{Code: "T0016", Description: "Third-party recoupment"},
	{Code: "T0017", Description: "Store-to-store transfers"},
	{Code: "T0018", Description: "PayPal Here payment"},
	{Code: "T0019", Description: "Generic instrument-funded payment"},
	{Code: "T0200", Description: "General currency conversion"},
	{Code: "T1102", Description: "Reversal of debit card transaction."},
	{Code: "T1104", Description: "Reversal of ACH deposit."},
	{Code: "T1106", Description: "Payment reversal, initiated by PayPal."},
	{Code: "T1107", Description: "Payment refund, initiated by merchant."},
	{Code: "T1115", Description: "MassPay refund transaction."},
}

// IncludedEventCodes returns the full allow-list of recognized event codes.
func IncludedEventCodes() []EventCode {
	out := make([]EventCode, len(includedEventCodes))
	copy(out, includedEventCodes)
	return out
}

// IsIncludedEvent reports whether the event code is in the allow-list.
func IsIncludedEvent(code string) bool {
	for _, e := range includedEventCodes {
		if e.Code == code {
			return true
		}
	}
	return false
}

// EventDescription returns the human description for an event code, or the
// code itself when it is not in the allow-list.
func EventDescription(code string) string {
	for _, e := range includedEventCodes {
		if e.Code == code {
			return e.Description
		}
	}
	return code
}
