// Package proxycurl provides a client for the Proxycurl person-lookup API,
// the specialized people-data provider behind the linkedin phase. The
// integration is pending rollout: callers must treat the provider as
// unavailable when no API key is configured.
package proxycurl

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://nubela.co/proxycurl/api"

// Client resolves people into LinkedIn profiles.
type Client interface {
	// LookupPerson resolves a person at a company into a LinkedIn profile URL.
	LookupPerson(ctx context.Context, firstName, lastName, companyDomain string) (*Person, error)
	// Configured reports whether the client has credentials to call the API.
	Configured() bool
}

// Person is a resolved person profile.
type Person struct {
	URL       string `json:"url"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Title     string `json:"title"`
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

// NewClient creates a Proxycurl client. An empty apiKey yields an
// unconfigured client whose lookups fail fast.
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

func (c *httpClient) Configured() bool {
	return c.apiKey != ""
}

func (c *httpClient) LookupPerson(ctx context.Context, firstName, lastName, companyDomain string) (*Person, error) {
	if !c.Configured() {
		return nil, eris.New("proxycurl: not configured")
	}

	params := url.Values{}
	params.Set("first_name", firstName)
	params.Set("last_name", lastName)
	params.Set("company_domain", companyDomain)

	reqURL := c.baseURL + "/linkedin/profile/resolve?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "proxycurl: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "proxycurl: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "proxycurl: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("proxycurl: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var person Person
	if err := json.Unmarshal(body, &person); err != nil {
		return nil, eris.Wrap(err, "proxycurl: unmarshal response")
	}

	return &person, nil
}
