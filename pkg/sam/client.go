// Package sam is a client for the SAM.gov Get Opportunities API v2.
package sam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.sam.gov/opportunities/v2"

// Client performs SAM.gov opportunity searches.
type Client interface {
	Search(ctx context.Context, q SearchQuery) (*SearchResponse, error)
}

// SearchQuery holds the supported search filters. Dates use the API's
// MM/dd/yyyy format. Pagination is offset-based.
type SearchQuery struct {
	PostedFrom string
	PostedTo   string
	State      string
	NAICS      string
	Title      string
	Limit      int
	Offset     int
}

// SearchResponse is one page of opportunity results.
type SearchResponse struct {
	TotalRecords  int           `json:"totalRecords"`
	Limit         int           `json:"limit"`
	Offset        int           `json:"offset"`
	Opportunities []Opportunity `json:"opportunitiesData"`
}

// Opportunity is a single contract notice.
type Opportunity struct {
	NoticeID           string             `json:"noticeId"`
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	NAICSCode          string             `json:"naicsCode"`
	Type               string             `json:"type"`
	PostedDate         string             `json:"postedDate"`
	ResponseDeadline   string             `json:"responseDeadLine"`
	PlaceOfPerformance PlaceOfPerformance `json:"placeOfPerformance"`
	PointOfContact     []PointOfContact   `json:"pointOfContact"`
	UILink             string             `json:"uiLink"`
}

// PlaceOfPerformance locates the work.
type PlaceOfPerformance struct {
	City  CodeName `json:"city"`
	State CodeName `json:"state"`
	Zip   string   `json:"zip"`
}

// CodeName is the API's {code, name} pair.
type CodeName struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// PointOfContact is a contracting office contact.
type PointOfContact struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Type     string `json:"type"`
}

// APIError is a non-200 response from the API, preserved so callers can
// distinguish throttling and authorization failures from transport errors.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sam: unexpected status %d: %s", e.StatusCode, e.Body)
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

// NewClient creates a SAM.gov API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, q SearchQuery) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("postedFrom", q.PostedFrom)
	params.Set("postedTo", q.PostedTo)
	if q.State != "" {
		params.Set("state", q.State)
	}
	if q.NAICS != "" {
		params.Set("ncode", q.NAICS)
	}
	if q.Title != "" {
		params.Set("title", q.Title)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(q.Offset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "sam: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "sam: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "sam: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result SearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "sam: unmarshal response")
	}

	return &result, nil
}
