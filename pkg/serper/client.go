// Package serper provides a client for the Serper.dev Google search API.
package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://google.serper.dev"

// Client performs web and news searches.
type Client interface {
	// Search runs an organic web search.
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
	// News runs a news-vertical search.
	News(ctx context.Context, query string, opts ...SearchOption) (*NewsResponse, error)
}

// OrganicResult is a single organic search hit.
type OrganicResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Date    string `json:"date,omitempty"`
}

// SearchResponse is the parsed /search response.
type SearchResponse struct {
	Organic []OrganicResult `json:"organic"`
}

// NewsResult is a single news search hit.
type NewsResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Date    string `json:"date,omitempty"`
	Source  string `json:"source,omitempty"`
}

// NewsResponse is the parsed /news response.
type NewsResponse struct {
	News []NewsResult `json:"news"`
}

// SearchOption configures a search request.
type SearchOption func(*searchOpts)

type searchOpts struct {
	site string
	num  int
}

// WithSite restricts results to a domain via a site: operator.
func WithSite(domain string) SearchOption {
	return func(o *searchOpts) {
		o.site = domain
	}
}

// WithNum sets the number of results to request.
func WithNum(n int) SearchOption {
	return func(o *searchOpts) {
		o.num = n
	}
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

// NewClient creates a Serper API client.
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

type searchRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	body, err := c.post(ctx, "/search", query, opts)
	if err != nil {
		return nil, err
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "serper: unmarshal search response")
	}
	return &result, nil
}

func (c *httpClient) News(ctx context.Context, query string, opts ...SearchOption) (*NewsResponse, error) {
	body, err := c.post(ctx, "/news", query, opts)
	if err != nil {
		return nil, err
	}

	var result NewsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "serper: unmarshal news response")
	}
	return &result, nil
}

func (c *httpClient) post(ctx context.Context, path, query string, opts []SearchOption) ([]byte, error) {
	so := &searchOpts{}
	for _, opt := range opts {
		opt(so)
	}
	if so.site != "" {
		query = "site:" + so.site + " " + query
	}

	payload, err := json.Marshal(searchRequest{Q: query, Num: so.num})
	if err != nil {
		return nil, eris.Wrap(err, "serper: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "serper: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "serper: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "serper: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("serper: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// ParseDate converts Serper's absolute date strings into a time. Relative
// forms ("2 days ago") and unknown layouts return nil rather than an error.
func ParseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{"Jan 2, 2006", "2 Jan 2006", time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
