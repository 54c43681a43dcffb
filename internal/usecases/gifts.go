package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/animalaidunlimited/virtuous-paypal-import/internal/domain"
)

// Outcome strings recorded for every transaction the gift phase touches.
// They form the audit-trail CSV attached to the outcome email.
const (
	OutcomeGiftAdded  = "Gift added successfully"
	OutcomeGiftFailed = "Failed to add gift"
	OutcomeNoteAdded  = "Contact note added successfully"
	OutcomeNoteFailed = "Failed to add contact note"
)

// tipItemName is the cart line item name the shop uses for the optional
// donation added to a purchase.
const tipItemName = "Tip"

// GiftPoster posts one transaction to Virtuous: a gift for donation
// channels, or a contact note (plus a split-out tip gift) for store
// purchases. It distinguishes one-time from recurring gifts by checking the
// contact's existing recurring-gift lineage.
type GiftPoster struct {
	crm      domain.CRMClient
	projects *ProjectResolver
	log      Logger
}

// NewGiftPoster creates a GiftPoster that resolves designations through the
// given run-scoped ProjectResolver.
func NewGiftPoster(crm domain.CRMClient, projects *ProjectResolver, log Logger) *GiftPoster {
	return &GiftPoster{crm: crm, projects: projects, log: log}
}

// Post processes one normalized transaction. Every path records an outcome
// row; failures are recorded against the transaction and never abort the
// run.
func (g *GiftPoster) Post(ctx context.Context, txn domain.Transaction, ann *domain.Annotation, rec Recorder) {
	if txn.IsStorePurchase() {
		g.postStorePurchase(ctx, txn, ann, rec)
		return
	}
	g.postGiftForTransaction(ctx, txn, ann, rec)
}

// postGiftForTransaction resolves the designation and posts the transaction
// as a gift, going through the recurring-gift lineage check when the
// transaction is an installment.
func (g *GiftPoster) postGiftForTransaction(ctx context.Context, txn domain.Transaction, ann *domain.Annotation, rec Recorder) {
	g.log.Debug(ctx, "processing transaction", map[string]interface{}{
		"transaction_id": txn.ID(),
		"event_code":     txn.Info.EventCode,
	})

	project := g.projects.Resolve(ctx, txn, rec)
	ann.Project = &project

	if txn.IsRecurring() {
		g.postRecurring(ctx, txn, ann, rec)
		return
	}

	ann.CreateRecurringGift = false
	g.postGift(ctx, txn, ann, rec)
}

// postRecurring checks the contact's existing recurring-gift lineage for
// this installment's reference id. Only the first installment of a lineage
// asks Virtuous to create the recurring gift; later installments attach to
// it.
func (g *GiftPoster) postRecurring(ctx context.Context, txn domain.Transaction, ann *domain.Annotation, rec Recorder) {
	lineage, err := g.recurringGifts(ctx, ann.ContactID)
	if err != nil {
		rec.RecordFailure(txn.ID(), "Error fetching recurring gifts, please check if this transaction matches to a recurring gift.")
	}

	found := false
	for _, gift := range lineage {
		if gift.TransactionID == txn.Info.ReferenceID {
			found = true
			break
		}
	}

	ann.RecurringGiftTransactionID = txn.Info.ReferenceID
	ann.CreateRecurringGift = !found

	g.postGift(ctx, txn, ann, rec)
}

// recurringGifts fetches the lineage, retrying exactly once on timeout and
// using the retried response.
func (g *GiftPoster) recurringGifts(ctx context.Context, contactID int) ([]domain.RecurringGift, error) {
	lineage, err := g.crm.RecurringGiftsByContact(ctx, contactID)
	if errors.Is(err, domain.ErrTimeout) {
		g.log.Warn(ctx, "recurring gift lookup timed out, retrying once", map[string]interface{}{
			"contact_id": contactID,
		})
		lineage, err = g.crm.RecurringGiftsByContact(ctx, contactID)
	}
	return lineage, err
}

// postGift builds the gift record and posts it, recording the outcome either
// way.
func (g *GiftPoster) postGift(ctx context.Context, txn domain.Transaction, ann *domain.Annotation, rec Recorder) {
	gift := buildGift(txn, ann)

	if err := g.crm.CreateGift(ctx, gift); err != nil {
		rec.RecordFailure(txn.ID(), fmt.Sprintf("Error posting gift to Virtuous: %v", err))
		rec.RecordOutcome(txn.ID(), OutcomeGiftFailed)
		return
	}

	rec.RecordOutcome(txn.ID(), OutcomeGiftAdded)
}

// postStorePurchase handles the store-purchase channel. A purchase becomes a
// contact note listing the bought items; when the cart carries a tip line
// item, the tip portion is split out and posted as a genuine gift first.
func (g *GiftPoster) postStorePurchase(ctx context.Context, txn domain.Transaction, ann *domain.Annotation, rec Recorder) {
	var tip *domain.CartItem
	for i := range txn.Cart.Items {
		if txn.Cart.Items[i].Name == tipItemName {
			tip = &txn.Cart.Items[i]
			break
		}
	}

	tipText := ""
	if tip != nil {
		tipText = fmt.Sprintf(" made a donation of $%s and", tip.Amount.Value.StringFixed(2))

		// The tip is the donation; the purchased items only go into the
		// note. Post the tip against its own project with the tip amount.
		tipGift := txn
		tipGift.Info.Subject = storeTipMarker
		tipGift.Info.Amount = tip.Amount
		g.postGiftForTransaction(ctx, tipGift, ann, rec)
	}

	note := buildPurchaseNote(txn, ann.ContactID, tipText)
	if err := g.crm.CreateContactNote(ctx, note); err != nil {
		rec.RecordFailure(txn.ID(), fmt.Sprintf("Error creating a contact note: %v", err))
		rec.RecordOutcome(txn.ID(), OutcomeNoteFailed)
		return
	}

	rec.RecordOutcome(txn.ID(), OutcomeNoteAdded)
}

// buildGift maps a transaction plus its run annotations onto the gift record
// Virtuous expects. The contact block is filled in even when the contact id
// is unresolved so the CRM's own matching can place the gift.
func buildGift(txn domain.Transaction, ann *domain.Annotation) domain.Gift {
	gift := domain.Gift{
		TransactionID:              txn.ID(),
		PayPalAccountID:            txn.Info.PayPalAccountID,
		ContactID:                  ann.ContactID,
		ContactName:                domain.TitleCase(txn.Payer.Name.AlternateFullName),
		FirstName:                  domain.TitleCase(txn.Payer.Name.GivenName),
		LastName:                   domain.TitleCase(txn.Payer.Name.Surname),
		Email:                      txn.Payer.Email,
		Address:                    txn.Shipping.Address,
		GiftDate:                   txn.Info.InitiationDate,
		Amount:                     txn.Info.Amount.Value,
		Notes:                      txn.Info.Note,
		ReferenceTransactionID:     txn.Info.ReferenceID,
		RecurringGiftTransactionID: ann.RecurringGiftTransactionID,
		CreateRecurringGift:        ann.CreateRecurringGift,
	}

	if ann.Project != nil {
		gift.Designations = []domain.Designation{{
			Project: *ann.Project,
			Amount:  txn.Info.Amount.Value,
		}}
	}

	return gift
}

// buildPurchaseNote formats the contact note for a store purchase, listing
// every non-tip item with its price.
func buildPurchaseNote(txn domain.Transaction, contactID int, tipText string) domain.ContactNote {
	var items []string
	for _, item := range txn.Cart.Items {
		if item.Name == tipItemName {
			continue
		}
		items = append(items, fmt.Sprintf("%s ($%s)", item.Name, item.Amount.Value.StringFixed(2)))
	}

	plural := ""
	if len(items) > 1 {
		plural = "s"
	}

	text := fmt.Sprintf("%s%s purchased %d item%s from the shop:\r\n\r\n%s",
		domain.TitleCase(txn.Payer.Name.AlternateFullName),
		tipText,
		len(items),
		plural,
		strings.Join(items, "\r\n"))

	return domain.ContactNote{
		ContactID: contactID,
		Text:      text,
		NoteDate:  txn.Info.InitiationDate,
	}
}
