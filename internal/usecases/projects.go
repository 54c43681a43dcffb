package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/animalaidunlimited/virtuous-paypal-import/internal/domain"
)

// Subject markers used to classify a transaction into a named project. The
// sponsorship prefix carries the sponsored name as a suffix; the others map
// to fixed project names.
const (
	sponsorshipPrefix  = "Sponsorship Monthly - "
	memorializeMarker  = "Memorialize"
	storeTipMarker     = "Shopify Tip"
	storeTipProject    = "shopifydonations"
	memorializeProject = "Memorialize"
)

// ProjectResolver determines which Virtuous project a transaction belongs
// to, creating the project on first encounter and caching it for the rest of
// the run.
//
// A ProjectResolver is scoped to a single run: the cache guarantees the CRM
// create call fires at most once per distinct project code per run.
type ProjectResolver struct {
	crm domain.CRMClient
	log Logger

	mu    sync.Mutex
	cache map[string]*projectEntry
}

// projectEntry resolves a single project code at most once even when many
// transactions for the same project race through the gift phase.
type projectEntry struct {
	once    sync.Once
	project domain.Project
}

// NewProjectResolver creates a ProjectResolver with an empty run cache.
func NewProjectResolver(crm domain.CRMClient, log Logger) *ProjectResolver {
	return &ProjectResolver{
		crm:   crm,
		log:   log,
		cache: make(map[string]*projectEntry),
	}
}

// Resolve returns the project for the transaction. Transactions that match
// no classification rule resolve to the Default project without any CRM
// call; most gifts take that fast path. Non-default projects are looked up
// by code, created on first encounter, and degrade to Default when creation
// fails — every transaction ends up with a valid project reference.
func (p *ProjectResolver) Resolve(ctx context.Context, txn domain.Transaction, rec Recorder) domain.Project {
	name := ParseProjectName(txn.Info.Subject)
	if name == domain.DefaultProject().Code {
		return domain.DefaultProject()
	}

	p.mu.Lock()
	entry, ok := p.cache[name]
	if !ok {
		entry = &projectEntry{}
		p.cache[name] = entry
	}
	p.mu.Unlock()

	entry.once.Do(func() {
		entry.project = p.fetchOrCreate(ctx, name, txn, rec)
	})

	return entry.project
}

// ParseProjectName classifies a transaction subject into a project name.
// Recurrence suffixes are stripped first, then the ordered marker rules
// apply; "Default" means no rule matched.
func ParseProjectName(subject string) string {
	if subject == "" {
		return domain.DefaultProject().Code
	}

	text := strings.ReplaceAll(subject, " - Yearly", "")
	text = strings.ReplaceAll(text, " - Monthly", "")

	switch {
	case strings.Contains(text, sponsorshipPrefix):
		return text[strings.Index(text, sponsorshipPrefix)+len(sponsorshipPrefix):]
	case strings.Contains(text, memorializeMarker):
		return memorializeProject
	case strings.Contains(text, storeTipMarker):
		// The shop calls them tips but they are donations; they get their
		// own project so they can be reported on separately.
		return storeTipProject
	default:
		return domain.DefaultProject().Code
	}
}

// fetchOrCreate looks the project up by code and creates it when Virtuous
// does not know it yet. Any creation failure degrades to the Default project
// rather than aborting the transaction.
func (p *ProjectResolver) fetchOrCreate(ctx context.Context, name string, txn domain.Transaction, rec Recorder) domain.Project {
	project, err := p.crm.FindProjectByCode(ctx, name)
	if err == nil {
		return *project
	}

	if !errors.Is(err, domain.ErrNotFound) {
		rec.RecordFailure(txn.ID(), "Error finding project. Please check this transaction is added to the correct project")
	}

	created, err := p.crm.CreateProject(ctx, name)
	if err != nil {
		rec.RecordFailure(txn.ID(), fmt.Sprintf("Error creating a project: %v", err))
		rec.RecordProjectAdded(fmt.Sprintf(
			"Error adding project %s - reverting to default for transactionId: %s", name, txn.ID()))
		return domain.DefaultProject()
	}

	rec.RecordProjectAdded(fmt.Sprintf("Added project %s for transactionId: %s", name, txn.ID()))

	p.log.Info(ctx, "created project", map[string]interface{}{
		"project":        name,
		"project_id":     created.ID,
		"transaction_id": txn.ID(),
	})

	return *created
}
