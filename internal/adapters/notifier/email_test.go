package notifier

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/animalaidunlimited/virtuous-paypal-import/internal/domain"
)

type mockSender struct {
	messages []*gomail.Message
	err      error
}

func (m *mockSender) DialAndSend(msgs ...*gomail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func reportTxn(id, eventCode, value string) domain.Transaction {
	var txn domain.Transaction
	txn.Info.TransactionID = id
	txn.Info.EventCode = eventCode
	txn.Info.Amount = domain.Money{CurrencyCode: "USD", Value: decimal.RequireFromString(value)}
	return txn
}

func sampleReport() *domain.RunReport {
	start := time.Date(2026, 8, 28, 2, 0, 0, 0, time.UTC)
	return &domain.RunReport{
		RunID:     "run-1",
		StartTime: start,
		EndTime:   start.Add(83 * time.Second),
		Transactions: []domain.Transaction{
			reportTxn("TXN1", "T0013", "25.00"),
			reportTxn("TXN2", "T0013", "10.00"),
			reportTxn("TXN3", "T0006", "12.50"),
		},
		ProjectsAdded: []string{"Added project Sherpu for transactionId: TXN1"},
		Failures:      []domain.Failure{{TransactionID: "TXN2", Reason: "Error posting gift to Virtuous: boom"}},
		Outcomes: []domain.Outcome{
			{TransactionID: "TXN1", Result: "Gift added successfully"},
			{TransactionID: "TXN2", Result: "Failed to add gift"},
			{TransactionID: "TXN3", Result: "Gift added successfully"},
		},
	}
}

func TestBuildEmailBody(t *testing.T) {
	body := BuildEmailBody(sampleReport())

	assert.Contains(t, body, "it took 00:01:23 to run")
	assert.Contains(t, body, "There are a total of 3 transactions in this run.")
	assert.Contains(t, body, "Total amount: $47.50")
	assert.Contains(t, body, "Donation payment: $35.00")
	assert.Contains(t, body, "PayPal Checkout APIs: $12.50")
	assert.Contains(t, body, "The following projects have been added to Virtuous:\nAdded project Sherpu for transactionId: TXN1")
	assert.Contains(t, body, "The following transactions had failures:\nTXN2: Error posting gift to Virtuous: boom")
	assert.Contains(t, body, "This message was sent by AAU's Virtuous PayPal import bot.")
}

func TestBuildEmailBody_EmptyRun(t *testing.T) {
	report := &domain.RunReport{
		StartTime: time.Now(),
		EndTime:   time.Now(),
	}

	body := BuildEmailBody(report)

	assert.Contains(t, body, "There are a total of 0 transactions in this run.")
	assert.Contains(t, body, "Total amount: $0.00")
	assert.NotContains(t, body, "projects have been added")
	assert.NotContains(t, body, "had failures")
}

func TestBuildEmailBody_BucketsFollowFirstSeenOrder(t *testing.T) {
	report := &domain.RunReport{
		Transactions: []domain.Transaction{
			reportTxn("TXN1", "T0006", "1.00"),
			reportTxn("TXN2", "T0013", "2.00"),
			reportTxn("TXN3", "T0006", "3.00"),
		},
	}

	body := BuildEmailBody(report)

	checkout := "PayPal Checkout APIs: $4.00"
	donation := "Donation payment: $2.00"
	assert.Contains(t, body, checkout)
	assert.Contains(t, body, donation)
	assert.Less(t, strings.Index(body, checkout), strings.Index(body, donation))
}

func TestBuildResultsCSV(t *testing.T) {
	csv := BuildResultsCSV(sampleReport().Outcomes)

	want := "transactionId,result\n" +
		"TXN1,Gift added successfully\n" +
		"TXN2,Failed to add gift\n" +
		"TXN3,Gift added successfully\n"
	assert.Equal(t, want, csv)

	assert.Equal(t, "transactionId,result\n", BuildResultsCSV(nil))
}

func TestEmailNotifier_Send(t *testing.T) {
	notifier := NewEmailNotifier(Options{
		Host: "smtp.example.org",
		Port: 465,
		From: "bot@example.org",
		To:   "ops@example.org",
	})
	sender := &mockSender{}
	notifier.sender = sender

	require.NoError(t, notifier.Send(context.Background(), sampleReport()))

	require.Len(t, sender.messages, 1)
	msg := sender.messages[0]
	assert.Equal(t, []string{"bot@example.org"}, msg.GetHeader("From"))
	assert.Equal(t, []string{"ops@example.org"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"Virtuous PayPal Import Complete"}, msg.GetHeader("Subject"))

	var raw bytes.Buffer
	_, err := msg.WriteTo(&raw)
	require.NoError(t, err)
	assert.Contains(t, raw.String(), attachmentName)
}

func TestEmailNotifier_Send_Error(t *testing.T) {
	notifier := NewEmailNotifier(Options{})
	notifier.sender = &mockSender{err: assert.AnError}

	err := notifier.Send(context.Background(), sampleReport())
	assert.ErrorContains(t, err, "sending outcome email")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    string
	}{
		{name: "seconds only", elapsed: 7 * time.Second, want: "00:00:07"},
		{name: "minutes and seconds", elapsed: 83 * time.Second, want: "00:01:23"},
		{name: "hours", elapsed: 2*time.Hour + 5*time.Minute + 9*time.Second, want: "02:05:09"},
		{name: "zero", elapsed: 0, want: "00:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Date(2026, 8, 28, 2, 0, 0, 0, time.UTC)
			report := &domain.RunReport{StartTime: start, EndTime: start.Add(tt.elapsed)}
			assert.Equal(t, tt.want, formatDuration(report))
		})
	}
}
