package usecases

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/animalaidunlimited/virtuous-paypal-import/internal/domain"
)

// DefaultConcurrency bounds the fan-out of each pipeline phase. The Virtuous
// API carries a fixed calls-per-hour quota, so the pool stays deliberately
// small; callers can widen or narrow it per run.
const DefaultConcurrency = 8

// Runner orchestrates one reconciliation run: normalize the raw batch,
// resolve contacts for every transaction, then post gifts and notes, and
// aggregate all results into a RunReport.
//
// The two phases each fan out across transactions with a bounded worker
// pool. Contact resolution fully completes before any gift is posted — gift
// posting depends on resolved contact ids being stable. Within a phase,
// transactions are independent and unordered.
type Runner struct {
	crm         domain.CRMClient
	log         Logger
	concurrency int
}

// NewRunner creates a Runner. A non-positive concurrency falls back to
// DefaultConcurrency.
func NewRunner(crm domain.CRMClient, log Logger, concurrency int) *Runner {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Runner{
		crm:         crm,
		log:         log,
		concurrency: concurrency,
	}
}

// Run processes the raw transaction batch and returns the completed report.
// The run always completes and always produces a report; no per-transaction
// failure aborts it. An empty batch short-circuits without a single CRM
// call.
func (r *Runner) Run(ctx context.Context, raw []domain.Transaction) *domain.RunReport {
	report := &domain.RunReport{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
	}
	rec := &reportRecorder{report: report}

	if len(raw) == 0 {
		r.log.Info(ctx, "no transactions found", map[string]interface{}{
			"run_id": report.RunID,
		})
		report.EndTime = time.Now()
		return report
	}

	transactions := NewTransactionNormalizer().Normalize(raw)
	report.Transactions = transactions

	r.log.Info(ctx, "starting reconciliation run", map[string]interface{}{
		"run_id":      report.RunID,
		"raw_count":   len(raw),
		"to_process":  len(transactions),
		"concurrency": r.concurrency,
	})

	// Annotations are created up front, one per transaction, so the phases
	// share a read-only map of pointers and each worker only ever touches
	// its own transaction's annotation.
	annotations := make(map[string]*domain.Annotation, len(transactions))
	for _, txn := range transactions {
		annotations[txn.ID()] = &domain.Annotation{TransactionID: txn.ID()}
	}

	contacts := NewContactResolver(r.crm, r.log)
	r.forEach(ctx, transactions, func(txn domain.Transaction) {
		annotations[txn.ID()].ContactID = contacts.Resolve(ctx, txn, rec)
	})

	gifts := NewGiftPoster(r.crm, NewProjectResolver(r.crm, r.log), r.log)
	r.forEach(ctx, transactions, func(txn domain.Transaction) {
		gifts.Post(ctx, txn, annotations[txn.ID()], rec)
	})

	report.EndTime = time.Now()

	r.log.Info(ctx, "reconciliation run complete", map[string]interface{}{
		"run_id":         report.RunID,
		"processed":      len(transactions),
		"failures":       len(report.Failures),
		"projects_added": len(report.ProjectsAdded),
	})

	return report
}

// forEach runs fn for every transaction with at most r.concurrency workers
// in flight, and returns once all have finished.
func (r *Runner) forEach(ctx context.Context, transactions []domain.Transaction, fn func(domain.Transaction)) {
	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup

	for _, txn := range transactions {
		wg.Add(1)
		sem <- struct{}{}
		go func(t domain.Transaction) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(t)
		}(txn)
	}

	wg.Wait()
}

// reportRecorder is the runner's mutex-guarded Recorder implementation. The
// pipeline phases append concurrently; the backing report is handed out only
// after both phases finish.
type reportRecorder struct {
	mu     sync.Mutex
	report *domain.RunReport
}

func (r *reportRecorder) RecordFailure(transactionID, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Failures = append(r.report.Failures, domain.Failure{
		TransactionID: transactionID,
		Reason:        reason,
	})
}

func (r *reportRecorder) RecordOutcome(transactionID, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Outcomes = append(r.report.Outcomes, domain.Outcome{
		TransactionID: transactionID,
		Result:        result,
	})
}

func (r *reportRecorder) RecordProjectAdded(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.ProjectsAdded = append(r.report.ProjectsAdded, line)
}
