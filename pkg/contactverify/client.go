// Package contactverify provides a client for the contact-verification
// provider's REST API (email finding and validation).
package contactverify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the contact-verification operations used by the
// enrichment engine.
type Client interface {
	// FindContact locates and verifies an email (and phone, when the
	// provider has one) for a person at a company domain.
	FindContact(ctx context.Context, req FindRequest) (*Contact, error)
}

// FindRequest identifies the person to look up.
type FindRequest struct {
	FullName string `json:"full_name"`
	Domain   string `json:"company_domain"`
}

// Contact is the verified contact data for one person.
type Contact struct {
	Email      string  `json:"email"`
	EmailState string  `json:"email_status"` // "valid", "catch_all", "unknown"
	Score      float64 `json:"score"`        // provider's own 0-1 confidence
	Phone      string  `json:"phone,omitempty"`
	// Charged reports whether the provider billed for this lookup; some
	// plans charge even when no email is found.
	Charged bool `json:"charged"`
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

// NewClient creates a contact-verification client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.prospeo.io",
		http: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) FindContact(ctx context.Context, fr FindRequest) (*Contact, error) {
	payload, err := json.Marshal(fr)
	if err != nil {
		return nil, eris.Wrap(err, "contactverify: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/email-finder", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "contactverify: create request")
	}
	req.Header.Set("X-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "contactverify: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "contactverify: read response body")
	}

	// 404 means the person could not be matched; the call may still have
	// been billed, which the response body reports.
	if resp.StatusCode == http.StatusNotFound {
		var miss Contact
		_ = json.Unmarshal(body, &miss)
		return &Contact{Charged: miss.Charged}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Status: resp.StatusCode, Body: truncate(string(body))}
	}

	var contact Contact
	if err := json.Unmarshal(body, &contact); err != nil {
		return nil, eris.Wrap(err, "contactverify: unmarshal response")
	}
	return &contact, nil
}

// StatusError carries the HTTP status so callers can classify
// retryability.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("contactverify: status %d: %s", e.Status, e.Body)
}

func truncate(s string) string {
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
