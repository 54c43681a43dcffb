// Package virtuous provides the HTTP adapter for the Virtuous CRM API. It
// implements domain.CRMClient, translating between domain types and the
// Virtuous wire format.
package virtuous

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/animalaidunlimited/virtuous-paypal-import/internal/domain"
)

// Options configures a Client.
type Options struct {
	// BaseURL is the Virtuous API root, e.g. https://api.virtuoussoftware.com/api.
	BaseURL string

	// TokenURL is the OAuth password-grant endpoint. Defaults to the
	// Virtuous production token endpoint when empty.
	TokenURL string

	// Username and Password authenticate the import service account. The
	// account must exist in exactly one Virtuous instance or the token may
	// belong to the wrong one.
	Username string
	Password string

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client

	// Timeout applies when no HTTPClient is supplied.
	Timeout time.Duration
}

const defaultTokenURL = "https://api.virtuoussoftware.com/Token"

// Client is an authenticated Virtuous API client. Authenticate must be
// called once per run before any other method.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokenURL   string
	username   string
	password   string
	token      string
}

// NewClient creates a Client from the given options.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		tokenURL:   tokenURL,
		username:   opts.Username,
		password:   opts.Password,
	}
}

// Authenticate exchanges the service-account credentials for a bearer token
// valid for the run.
func (c *Client) Authenticate(ctx context.Context) error {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", c.username)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting token: %w", classify(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: token endpoint returned %d", domain.ErrUnexpectedStatus, resp.StatusCode)
	}

	var token struct {
		TokenType   string `json:"token_type"`
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return fmt.Errorf("decoding token response: %w", err)
	}

	c.token = token.TokenType + " " + token.AccessToken
	return nil
}

// FindContactByEmail looks a contact up by email. Returns ErrNotFound when
// Virtuous reports no match. A response body that cannot be decoded yields
// an empty contact rather than an error; the caller treats a zero id as no
// match.
func (c *Client) FindContactByEmail(ctx context.Context, email string) (*domain.Contact, error) {
	endpoint := fmt.Sprintf(`%s/Contact/Find?email=%s&referenceSource=""&referenceId=""`,
		c.baseURL, url.QueryEscape(email))

	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var contact domain.Contact
		if err := json.NewDecoder(resp.Body).Decode(&contact); err != nil {
			return &domain.Contact{}, nil
		}
		return &contact, nil
	case http.StatusNotFound:
		return nil, domain.ErrNotFound
	default:
		return nil, fmt.Errorf("%w: contact find returned %d", domain.ErrUnexpectedStatus, resp.StatusCode)
	}
}

// CreateContact creates a household contact.
func (c *Client) CreateContact(ctx context.Context, contact domain.NewContact) (*domain.Contact, error) {
	resp, err := c.post(ctx, c.baseURL+"/Contact", newContactBody(contact))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: contact create returned %d", domain.ErrUnexpectedStatus, resp.StatusCode)
	}

	var created domain.Contact
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decoding created contact: %w", err)
	}
	return &created, nil
}

// FindProjectByCode looks a project up by its code. Returns ErrNotFound when
// Virtuous does not know the code.
func (c *Client) FindProjectByCode(ctx context.Context, code string) (*domain.Project, error) {
	resp, err := c.get(ctx, c.baseURL+"/Project/Code/"+url.PathEscape(code))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var project projectResponse
		if err := json.NewDecoder(resp.Body).Decode(&project); err != nil {
			return nil, fmt.Errorf("decoding project: %w", err)
		}
		return project.toDomain(), nil
	case http.StatusNotFound:
		return nil, domain.ErrNotFound
	default:
		return nil, fmt.Errorf("%w: project find returned %d", domain.ErrUnexpectedStatus, resp.StatusCode)
	}
}

// CreateProject creates a project named after the transaction subject; the
// name doubles as the project code and revenue accounting code.
func (c *Client) CreateProject(ctx context.Context, name string) (*domain.Project, error) {
	resp, err := c.post(ctx, c.baseURL+"/Project?disableWebhookUpdates=false", newProjectBody(name))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: project create returned %d", domain.ErrUnexpectedStatus, resp.StatusCode)
	}

	var project projectResponse
	if err := json.NewDecoder(resp.Body).Decode(&project); err != nil {
		return nil, fmt.Errorf("decoding created project: %w", err)
	}
	return project.toDomain(), nil
}

// CreateGift posts a gift transaction.
func (c *Client) CreateGift(ctx context.Context, gift domain.Gift) error {
	resp, err := c.post(ctx, c.baseURL+"/v2/Gift/Transaction", giftBody(gift))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: gift post returned %d", domain.ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}

// CreateContactNote posts a note against a contact.
func (c *Client) CreateContactNote(ctx context.Context, note domain.ContactNote) error {
	body := contactNoteRequest{
		ContactID:    note.ContactID,
		Type:         "General",
		Note:         note.Text,
		NoteDateTime: note.NoteDate,
		Important:    false,
		Private:      false,
		TimeSpent:    0,
	}

	resp, err := c.post(ctx, c.baseURL+"/ContactNote", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: contact note post returned %d", domain.ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}

// RecurringGiftsByContact returns one page of the contact's recurring-gift
// lineage, oldest first, up to 50 entries. A non-success response yields an
// empty lineage, which callers treat as no prior installments.
func (c *Client) RecurringGiftsByContact(ctx context.Context, contactID int) ([]domain.RecurringGift, error) {
	endpoint := fmt.Sprintf("%s/RecurringGift/ByContact/%d?sortBy=RecurringGiftDate&descending=false&skip=0&take=50",
		c.baseURL, contactID)

	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var page struct {
		List []domain.RecurringGift `json:"list"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, nil
	}
	return page.List, nil
}

func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, endpoint, nil)
}

func (c *Client) post(ctx context.Context, endpoint string, body interface{}) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, endpoint, payload)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) (*http.Response, error) {
	if c.token == "" {
		return nil, domain.ErrNotAuthenticated
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	return resp, nil
}

// classify maps transport errors onto the domain's error taxonomy so the
// pipeline can distinguish retryable timeouts from terminal failures.
func classify(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return err
}

// Wire types. The field sets mirror what the Virtuous API expects and
// returns; domain types stay free of Virtuous-specific baggage.

type projectResponse struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	ProjectCode string `json:"projectCode"`
}

func (p projectResponse) toDomain() *domain.Project {
	project := &domain.Project{
		ID:   p.ID,
		Name: p.Name,
		Code: p.ProjectCode,
	}
	if project.Name == "" {
		project.Name = domain.DefaultProject().Name
	}
	if project.Code == "" {
		project.Code = domain.DefaultProject().Code
	}
	return project
}

type contactNoteRequest struct {
	ContactID    int    `json:"contactId"`
	Type         string `json:"type"`
	Note         string `json:"note"`
	NoteDateTime string `json:"noteDateTime"`
	Important    bool   `json:"important"`
	Private      bool   `json:"private"`
	TimeSpent    int    `json:"timeSpent"`
}

type giftContactAddress struct {
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	State    string `json:"state"`
	Postal   string `json:"postal"`
	Country  string `json:"country"`
}

type giftContact struct {
	ReferenceID string             `json:"referenceId"`
	ID          int                `json:"id,omitempty"`
	Name        string             `json:"name"`
	Type        string             `json:"type"`
	FirstName   string             `json:"firstname"`
	LastName    string             `json:"lastname"`
	EmailType   string             `json:"emailType"`
	Email       string             `json:"email"`
	PhoneType   string             `json:"phoneType"`
	Phone       string             `json:"phone"`
	Address     giftContactAddress `json:"address"`
	Tags        string             `json:"tags"`
	EmailLists  []string           `json:"emailLists"`
}

type giftDesignation struct {
	ID               int             `json:"id"`
	Name             string          `json:"name"`
	Code             string          `json:"code"`
	AmountDesignated decimal.Decimal `json:"amountDesignated"`
}

type giftRequest struct {
	TransactionSource          string            `json:"transactionSource"`
	TransactionID              string            `json:"transactionId"`
	Contact                    giftContact       `json:"contact"`
	GiftDate                   string            `json:"giftDate"`
	GiftType                   string            `json:"giftType"`
	Amount                     decimal.Decimal   `json:"amount"`
	Frequency                  string            `json:"frequency"`
	RecurringGiftTransactionID string            `json:"recurringGiftTransactionId"`
	Notes                      string            `json:"notes"`
	Designations               []giftDesignation `json:"designations"`
	CustomFields               map[string]string `json:"customFields"`
}

// giftBody maps a domain gift onto the v2 gift transaction payload. A
// frequency is only sent when Virtuous should start a new recurring lineage.
func giftBody(gift domain.Gift) giftRequest {
	frequency := ""
	if gift.CreateRecurringGift {
		frequency = "Monthly"
	}

	designations := make([]giftDesignation, 0, len(gift.Designations))
	for _, d := range gift.Designations {
		designations = append(designations, giftDesignation{
			ID:               d.Project.ID,
			Name:             d.Project.Name,
			Code:             d.Project.Code,
			AmountDesignated: d.Amount,
		})
	}

	return giftRequest{
		TransactionSource: "PayPal",
		TransactionID:     gift.TransactionID,
		Contact: giftContact{
			ReferenceID: gift.PayPalAccountID,
			ID:          gift.ContactID,
			Name:        gift.ContactName,
			Type:        "Household",
			FirstName:   gift.FirstName,
			LastName:    gift.LastName,
			EmailType:   "Home Email",
			Email:       gift.Email,
			PhoneType:   "Home Phone",
			Phone:       "",
			Address: giftContactAddress{
				Address1: gift.Address.Line1,
				Address2: gift.Address.Line2,
				City:     gift.Address.City,
				State:    gift.Address.State,
				Postal:   gift.Address.PostalCode,
				Country:  gift.Address.Country,
			},
			Tags:       "PayPal",
			EmailLists: []string{},
		},
		GiftDate:                   gift.GiftDate,
		GiftType:                   "EFT",
		Amount:                     gift.Amount,
		Frequency:                  frequency,
		RecurringGiftTransactionID: gift.RecurringGiftTransactionID,
		Notes:                      gift.Notes,
		Designations:               designations,
		CustomFields: map[string]string{
			"ReferenceTransactionId": gift.ReferenceTransactionID,
		},
	}
}

type contactMethod struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	IsOptedIn bool   `json:"isOptedIn"`
	IsPrimary bool   `json:"isPrimary"`
}

type contactIndividual struct {
	FirstName      string          `json:"firstName"`
	LastName       string          `json:"lastName"`
	IsPrimary      bool            `json:"isPrimary"`
	IsSecondary    bool            `json:"isSecondary"`
	IsDeceased     bool            `json:"isDeceased"`
	ContactMethods []contactMethod `json:"contactMethods"`
}

type contactAddress struct {
	Address1    string `json:"address1"`
	Address2    string `json:"address2"`
	City        string `json:"city"`
	Postal      string `json:"postal"`
	CountryCode string `json:"countryCode"`
	IsPrimary   bool   `json:"isPrimary"`
}

type newContactRequest struct {
	ContactType        string              `json:"contactType"`
	ReferenceSource    string              `json:"referenceSource"`
	Name               string              `json:"name"`
	IsPrivate          bool                `json:"isPrivate"`
	IsArchived         bool                `json:"isArchived"`
	ContactAddresses   []contactAddress    `json:"contactAddresses"`
	ContactIndividuals []contactIndividual `json:"contactIndividuals"`
}

func newContactBody(contact domain.NewContact) newContactRequest {
	return newContactRequest{
		ContactType:     "Household",
		ReferenceSource: domain.StorePurchaseChannel,
		Name:            contact.Name,
		IsPrivate:       false,
		IsArchived:      false,
		ContactAddresses: []contactAddress{{
			Address1:    contact.Address.Line1,
			Address2:    contact.Address.Line2,
			City:        contact.Address.City,
			Postal:      contact.Address.PostalCode,
			CountryCode: contact.Address.Country,
			IsPrimary:   true,
		}},
		ContactIndividuals: []contactIndividual{{
			FirstName:   contact.FirstName,
			LastName:    contact.LastName,
			IsPrimary:   true,
			IsSecondary: false,
			IsDeceased:  false,
			ContactMethods: []contactMethod{{
				Type:      "Home Email",
				Value:     contact.Email,
				IsOptedIn: false,
				IsPrimary: true,
			}},
		}},
	}
}

type newProjectRequest struct {
	Name                    string  `json:"name"`
	RevenueAccountingCode   string  `json:"revenueAccountingCode"`
	InventoryStatus         string  `json:"inventoryStatus"`
	Type                    string  `json:"type"`
	OnlineDisplayName       string  `json:"onlineDisplayName"`
	Description             string  `json:"description"`
	DurationType            string  `json:"durationType"`
	FinancialNeedAmount     float64 `json:"financialNeedAmount"`
	FinancialNeedType       int     `json:"financialNeedType"`
	FinancialNeedFrequency  string  `json:"financialNeedFrequency"`
	Location                string  `json:"location"`
	IsPublic                bool    `json:"isPublic"`
	IsActive                bool    `json:"isActive"`
	IsAvailableOnline       bool    `json:"isAvailableOnline"`
	IsLimitedToNeed         bool    `json:"isLimitedToFinancialNeed"`
	IsTaxDeductible         bool    `json:"isTaxDeductible"`
	TreatAsAccountsPayable  bool    `json:"treatAsAccountsPayable"`
	IsRestrictedToGiftSpecs bool    `json:"isRestrictedToGiftSpecifications"`
	EnableSync              bool    `json:"enableSync"`
}

func newProjectBody(name string) newProjectRequest {
	return newProjectRequest{
		Name:                   name,
		RevenueAccountingCode:  name,
		InventoryStatus:        "Unspecified",
		Type:                   "Default",
		OnlineDisplayName:      name,
		Description:            "Project auto created by PayPal import",
		DurationType:           "Ongoing",
		FinancialNeedAmount:    0,
		FinancialNeedType:      2,
		FinancialNeedFrequency: "Annually",
		Location:               "US",
		IsPublic:               true,
		IsActive:               true,
		IsAvailableOnline:      true,
		IsTaxDeductible:        true,
	}
}
