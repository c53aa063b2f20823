// Package pdl provides a client for the People Data Labs company API, the
// business-graph provider behind the company enrichment phase.
package pdl

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.peopledatalabs.com/v5"

// Client performs company lookups against People Data Labs.
type Client interface {
	// EnrichCompany resolves a company by name (and optional website) into a
	// canonical profile. Returns ErrNotFound when no match exists.
	EnrichCompany(ctx context.Context, name, website string) (*Company, error)
}

// ErrNotFound is returned when the provider has no record for the company.
var ErrNotFound = eris.New("pdl: company not found")

// Company is the canonical company profile returned by the API.
type Company struct {
	Name             string `json:"name"`
	Website          string `json:"website"`
	Industry         string `json:"industry"`
	Summary          string `json:"summary"`
	NumEmployeesEnum string `json:"num_employees_enum"`
	EmployeeCount    int    `json:"employee_count"`
	AnnualRevenue    int64  `json:"inferred_revenue"`
	LinkedInURL      string `json:"linkedin_url"`
	Location         struct {
		Country string `json:"country"`
		City    string `json:"locality"`
	} `json:"location"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a People Data Labs client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) EnrichCompany(ctx context.Context, name, website string) (*Company, error) {
	params := url.Values{}
	params.Set("name", name)
	if website != "" {
		params.Set("website", website)
	}

	reqURL := c.baseURL + "/company/enrich?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "pdl: create request")
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "pdl: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "pdl: read response")
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("pdl: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var company Company
	if err := json.Unmarshal(body, &company); err != nil {
		return nil, eris.Wrap(err, "pdl: unmarshal response")
	}

	return &company, nil
}
