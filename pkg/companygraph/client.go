// Package companygraph provides a client for the employment-graph data
// provider's REST API.
package companygraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the employment-graph operations used by the enrichment
// engine.
type Client interface {
	// ResolveCompany looks up a company by name or website domain.
	ResolveCompany(ctx context.Context, nameOrDomain string) (*Company, error)
	// SearchEmployees returns employees of a company matching optional
	// title keywords. Preview listings carry names, titles and
	// departments only.
	SearchEmployees(ctx context.Context, req EmployeeSearch) (*EmployeeSearchResponse, error)
}

// Company is the provider's view of a resolved company.
type Company struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Website       string `json:"website"`
	Industry      string `json:"industry"`
	EmployeeCount int    `json:"employees_count"`
}

// EmployeeSearch describes an employee search query.
type EmployeeSearch struct {
	CompanyID     string   `json:"company_id,omitempty"`
	CompanyName   string   `json:"company_name,omitempty"`
	TitleKeywords []string `json:"title_keywords,omitempty"`
	Limit         int      `json:"limit,omitempty"`
}

// Employee is one preview-level employee listing.
type Employee struct {
	ID          string `json:"id"`
	FullName    string `json:"full_name"`
	Title       string `json:"active_experience_title"`
	Department  string `json:"department"`
	Seniority   string `json:"management_level"`
	ProfileURL  string `json:"profile_url"`
	Connections int    `json:"connections_count"`
	CompanyName string `json:"company_name"`
}

// EmployeeSearchResponse is the parsed search response.
type EmployeeSearchResponse struct {
	Employees []Employee `json:"employees"`
	Total     int        `json:"total"`
	// CreditsCharged is the number of search credits the provider billed
	// for this call; pagination can make this exceed one.
	CreditsCharged int `json:"credits_charged"`
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

// NewClient creates an employment-graph client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.coresignal.com/cdapi/v2",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) ResolveCompany(ctx context.Context, nameOrDomain string) (*Company, error) {
	reqURL := fmt.Sprintf("%s/company/resolve?q=%s", c.baseURL, url.QueryEscape(nameOrDomain))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "companygraph: create resolve request")
	}
	c.setHeaders(req)

	body, status, err := c.do(req)
	if err != nil {
		return nil, eris.Wrap(err, "companygraph: resolve request failed")
	}

	// The provider returns 404 when nothing in its graph matches.
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, statusError("resolve", status, body)
	}

	var company Company
	if err := json.Unmarshal(body, &company); err != nil {
		return nil, eris.Wrap(err, "companygraph: unmarshal resolve response")
	}
	if company.ID == "" {
		return nil, nil
	}
	return &company, nil
}

func (c *httpClient) SearchEmployees(ctx context.Context, search EmployeeSearch) (*EmployeeSearchResponse, error) {
	payload, err := json.Marshal(search)
	if err != nil {
		return nil, eris.Wrap(err, "companygraph: marshal search")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/employee/search", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "companygraph: create search request")
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	body, status, err := c.do(req)
	if err != nil {
		return nil, eris.Wrap(err, "companygraph: search request failed")
	}
	if status != http.StatusOK {
		return nil, statusError("search", status, body)
	}

	var result EmployeeSearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "companygraph: unmarshal search response")
	}
	return &result, nil
}

func (c *httpClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
}

func (c *httpClient) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "companygraph: read response body")
	}
	return body, resp.StatusCode, nil
}

// StatusError carries the HTTP status so callers can classify
// retryability.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("companygraph: %s status %d: %s", e.Op, e.Status, e.Body)
}

func statusError(op string, status int, body []byte) *StatusError {
	msg := string(body)
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return &StatusError{Op: op, Status: status, Body: msg}
}
