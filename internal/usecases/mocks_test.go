package usecases

import (
	"context"
	"sync"

	"github.com/animalaidunlimited/virtuous-paypal-import/internal/domain"
)

// mockLogger is a no-op Logger for tests.
type mockLogger struct{}

func (m *mockLogger) Info(ctx context.Context, msg string, fields map[string]interface{})  {}
func (m *mockLogger) Debug(ctx context.Context, msg string, fields map[string]interface{}) {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, msg string, err error, fields map[string]interface{}) {
}

// mockRecorder captures recorded results for assertions. It is safe for
// concurrent use so runner tests can share it across workers.
type mockRecorder struct {
	mu            sync.Mutex
	failures      []domain.Failure
	outcomes      []domain.Outcome
	projectsAdded []string
}

func (m *mockRecorder) RecordFailure(transactionID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, domain.Failure{TransactionID: transactionID, Reason: reason})
}

func (m *mockRecorder) RecordOutcome(transactionID, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, domain.Outcome{TransactionID: transactionID, Result: result})
}

func (m *mockRecorder) RecordProjectAdded(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projectsAdded = append(m.projectsAdded, line)
}

func (m *mockRecorder) failureReasons() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	reasons := make([]string, 0, len(m.failures))
	for _, f := range m.failures {
		reasons = append(reasons, f.Reason)
	}
	return reasons
}

func (m *mockRecorder) outcomeFor(transactionID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.outcomes {
		if o.TransactionID == transactionID {
			return o.Result
		}
	}
	return ""
}

// mockCRM is a programmable in-memory CRMClient. Error queues let tests
// script per-call behavior such as a timeout followed by a success.
type mockCRM struct {
	mu sync.Mutex

	contacts         map[string]domain.Contact
	findContactErrs  map[string][]error
	findContactCalls map[string]int
	createdContacts  []domain.NewContact
	createContactErr error
	nextContactID    int

	projects           map[string]domain.Project
	createdProjects    []string
	findProjectErr     error
	createProjectErr   error
	createProjectCalls int
	nextProjectID      int

	gifts         []domain.Gift
	createGiftErr error

	notes         []domain.ContactNote
	createNoteErr error

	recurring          map[int][]domain.RecurringGift
	recurringErrs      []error
	recurringCallCount int
}

func newMockCRM() *mockCRM {
	return &mockCRM{
		contacts:         make(map[string]domain.Contact),
		findContactErrs:  make(map[string][]error),
		findContactCalls: make(map[string]int),
		projects:         make(map[string]domain.Project),
		recurring:        make(map[int][]domain.RecurringGift),
		nextContactID:    100,
		nextProjectID:    500,
	}
}

func (m *mockCRM) Authenticate(ctx context.Context) error { return nil }

func (m *mockCRM) FindContactByEmail(ctx context.Context, email string) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.findContactCalls[email]++
	if errs := m.findContactErrs[email]; len(errs) > 0 {
		err := errs[0]
		m.findContactErrs[email] = errs[1:]
		if err != nil {
			return nil, err
		}
	}

	contact, ok := m.contacts[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &contact, nil
}

func (m *mockCRM) CreateContact(ctx context.Context, contact domain.NewContact) (*domain.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createContactErr != nil {
		return nil, m.createContactErr
	}

	m.createdContacts = append(m.createdContacts, contact)
	m.nextContactID++
	created := domain.Contact{ID: m.nextContactID, Name: contact.Name, Email: contact.Email}
	m.contacts[contact.Email] = created
	return &created, nil
}

func (m *mockCRM) FindProjectByCode(ctx context.Context, code string) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findProjectErr != nil {
		return nil, m.findProjectErr
	}
	project, ok := m.projects[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &project, nil
}

func (m *mockCRM) CreateProject(ctx context.Context, name string) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createProjectCalls++
	if m.createProjectErr != nil {
		return nil, m.createProjectErr
	}

	m.createdProjects = append(m.createdProjects, name)
	m.nextProjectID++
	created := domain.Project{ID: m.nextProjectID, Name: name, Code: name}
	m.projects[name] = created
	return &created, nil
}

func (m *mockCRM) CreateGift(ctx context.Context, gift domain.Gift) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createGiftErr != nil {
		return m.createGiftErr
	}
	m.gifts = append(m.gifts, gift)
	return nil
}

func (m *mockCRM) CreateContactNote(ctx context.Context, note domain.ContactNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createNoteErr != nil {
		return m.createNoteErr
	}
	m.notes = append(m.notes, note)
	return nil
}

func (m *mockCRM) RecurringGiftsByContact(ctx context.Context, contactID int) ([]domain.RecurringGift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recurringCallCount++
	if len(m.recurringErrs) > 0 {
		err := m.recurringErrs[0]
		m.recurringErrs = m.recurringErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return m.recurring[contactID], nil
}

func (m *mockCRM) giftFor(transactionID string) (domain.Gift, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.gifts {
		if g.TransactionID == transactionID {
			return g, true
		}
	}
	return domain.Gift{}, false
}
