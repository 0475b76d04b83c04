// Package peopledata provides a client for the people-data provider's
// person enrichment API.
package peopledata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the people-data operations used by the enrichment engine.
type Client interface {
	// EnrichPerson returns the provider's full profile for a person,
	// matched by name plus employer or profile URL.
	EnrichPerson(ctx context.Context, q PersonQuery) (*Person, error)
}

// PersonQuery identifies the person to enrich.
type PersonQuery struct {
	Name       string
	Company    string
	ProfileURL string
}

// Experience is one entry in a person's career history.
type Experience struct {
	Title     string `json:"title"`
	Company   string `json:"company"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
}

// Person is the provider's enriched profile.
type Person struct {
	ID          string       `json:"id"`
	FullName    string       `json:"full_name"`
	Title       string       `json:"job_title"`
	Company     string       `json:"job_company_name"`
	Emails      []string     `json:"emails"`
	Phones      []string     `json:"phone_numbers"`
	ProfileURL  string       `json:"linkedin_url"`
	Connections int          `json:"linkedin_connections"`
	Experience  []Experience `json:"experience"`
	Likelihood  float64      `json:"likelihood"` // provider match confidence 0-1
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a people-data client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.peopledatalabs.com/v5",
		http: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) EnrichPerson(ctx context.Context, q PersonQuery) (*Person, error) {
	params := url.Values{}
	if q.Name != "" {
		params.Set("name", q.Name)
	}
	if q.Company != "" {
		params.Set("company", q.Company)
	}
	if q.ProfileURL != "" {
		params.Set("profile", q.ProfileURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/person/enrich?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "peopledata: create request")
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "peopledata: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "peopledata: read response body")
	}

	// 404 means no profile matched; the provider does not charge misses.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Status: resp.StatusCode, Body: truncate(string(body))}
	}

	var envelope struct {
		Status int    `json:"status"`
		Data   Person `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, eris.Wrap(err, "peopledata: unmarshal response")
	}
	return &envelope.Data, nil
}

// StatusError carries the HTTP status so callers can classify
// retryability.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("peopledata: status %d: %s", e.Status, e.Body)
}

func truncate(s string) string {
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
