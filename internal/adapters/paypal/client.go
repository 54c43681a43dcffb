// Package paypal provides the HTTP adapter for the PayPal transaction
// search API. It implements domain.TransactionSource.
package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/animalaidunlimited/virtuous-paypal-import/internal/domain"
)

// Transaction statuses worth importing: settled and voided. Every other
// status is excluded at fetch time, before the reconciliation core ever
// sees the transaction.
const (
	statusSettled = "S"
	statusVoided  = "V"
)

// transactionFields is the field set requested from the transaction search;
// it covers everything the pipeline reads.
const transactionFields = "transaction_info,payer_info,shipping_info,cart_info"

// Options configures a Client.
type Options struct {
	// BaseURL is the PayPal API root, e.g. https://api-m.paypal.com/v1.
	BaseURL string

	// ClientID and Secret are the REST app credentials used for the
	// client-credentials token grant.
	ClientID string
	Secret   string

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client

	// Timeout applies when no HTTPClient is supplied.
	Timeout time.Duration
}

// Client is an authenticated PayPal reporting client. Authenticate must be
// called once per run before FetchTransactions. PayPal tokens are
// short-lived, so a fresh one is acquired every run.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
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

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		clientID:   opts.ClientID,
		secret:     opts.Secret,
	}
}

// Authenticate performs the client-credentials grant and stores the bearer
// token for the run.
func (c *Client) Authenticate(ctx context.Context) error {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en_US")
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

// transactionPage is one page of the transaction search response.
type transactionPage struct {
	TransactionDetails []domain.Transaction `json:"transaction_details"`
	TotalPages         int                  `json:"total_pages"`
	Page               int                  `json:"page"`
}

// FetchTransactions returns every settled or voided transaction initiated
// inside [start, end], concatenated across all result pages.
func (c *Client) FetchTransactions(ctx context.Context, start, end time.Time) ([]domain.Transaction, error) {
	if c.token == "" {
		return nil, domain.ErrNotAuthenticated
	}

	first, err := c.fetchPage(ctx, start, end, 0)
	if err != nil {
		return nil, err
	}

	transactions := filterSettled(first.TransactionDetails)

	for page := 2; page <= first.TotalPages; page++ {
		next, err := c.fetchPage(ctx, start, end, page)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, filterSettled(next.TransactionDetails)...)
	}

	return transactions, nil
}

// fetchPage requests one page of the transaction search. Page zero means
// "no page parameter", which PayPal treats as the first page.
func (c *Client) fetchPage(ctx context.Context, start, end time.Time, page int) (*transactionPage, error) {
	query := url.Values{}
	query.Set("start_date", formatReportingTime(start))
	query.Set("end_date", formatReportingTime(end))
	query.Set("fields", transactionFields)
	if page > 0 {
		query.Set("page", fmt.Sprintf("%d", page))
	}

	endpoint := c.baseURL + "/reporting/transactions?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building transactions request: %w", err)
	}
	req.Header.Set("Authorization", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching transactions: %w", classify(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: transaction search returned %d", domain.ErrUnexpectedStatus, resp.StatusCode)
	}

	var result transactionPage
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding transactions page: %w", err)
	}

	return &result, nil
}

func filterSettled(transactions []domain.Transaction) []domain.Transaction {
	kept := make([]domain.Transaction, 0, len(transactions))
	for _, txn := range transactions {
		if txn.Info.Status == statusSettled || txn.Info.Status == statusVoided {
			kept = append(kept, txn)
		}
	}
	return kept
}

// formatReportingTime renders a timestamp the way the reporting API expects
// it: second precision with an explicit zero offset.
func formatReportingTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05") + "-0000"
}

// ReportingWindow resolves the run's date window from the optional
// start/end date strings (YYYY-MM-DD). When neither is given, the window
// covers the whole of yesterday in UTC — the normal case for the nightly
// scheduled run.
func ReportingWindow(startDate, endDate string, now time.Time) (time.Time, time.Time, error) {
	start := now.UTC()
	if startDate != "" {
		parsed, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", startDate, err)
		}
		start = parsed
	} else {
		start = start.AddDate(0, 0, -1)
	}
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

	end := now.UTC()
	if endDate != "" {
		parsed, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", endDate, err)
		}
		end = parsed
	} else {
		end = end.AddDate(0, 0, -1)
	}
	end = time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, time.UTC)

	return start, end, nil
}

// classify maps transport errors onto the domain's error taxonomy.
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
