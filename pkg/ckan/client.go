// Package ckan provides a client for the CKAN action API used by HDX.
package ckan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the catalog operations the detector needs.
type Client interface {
	// PackageShow returns one dataset by id or name.
	PackageShow(ctx context.Context, id string) (*Package, error)
	// PackageSearch returns one page of datasets matching a filter query.
	PackageSearch(ctx context.Context, fq string, rows, start int) (*SearchResult, error)
	// UpdatePCoded sets the p-coded flag of a resource.
	UpdatePCoded(ctx context.Context, resourceID string, pcoded bool) error
}

// Package is a CKAN dataset.
type Package struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Title        string        `json:"title"`
	Organization *Organization `json:"organization"`
	Groups       []Group       `json:"groups"`
	Archived     Flag          `json:"archived"`
	Resources    []Resource    `json:"resources"`
}

// Organization owns a package.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Group is a CKAN group. HDX uses groups for locations, named by lower-case ISO3.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Resource is a file or API endpoint attached to a package.
type Resource struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	Format       string `json:"format"`
	Size         Size   `json:"size"`
	ResourceType string `json:"resource_type"`
	PCoded       *Flag  `json:"p_coded"`
}

// SearchResult is one page of package_search.
type SearchResult struct {
	Count   int       `json:"count"`
	Results []Package `json:"results"`
}

// Flag is a boolean that CKAN extensions sometimes serialize as a string.
type Flag bool

// UnmarshalJSON accepts true, false, "true", "false", and null.
func (f *Flag) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		*f = true
	case "false", "0", "no", "", "null":
		*f = false
	default:
		return eris.Errorf("ckan: invalid boolean %s", b)
	}
	return nil
}

// Size is a byte count that may arrive as a number, a string, or null.
type Size int64

// UnmarshalJSON accepts numbers, numeric strings, and null (zero).
func (s *Size) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return eris.Wrapf(err, "ckan: invalid size %s", b)
	}
	*s = Size(f)
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"__type"`
	} `json:"error"`
}

// Option configures the CKAN client.
type Option func(*httpClient)

// WithAPIKey sets the key sent in the Authorization header.
func WithAPIKey(key string) Option {
	return func(c *httpClient) {
		c.apiKey = key
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) {
		c.userAgent = ua
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	baseURL   string
	apiKey    string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a client for the CKAN instance at baseURL.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "pcode-detector",
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

// call performs an action request. GET requests are retried on transient
// failures; POST requests are sent once.
func (c *httpClient) call(ctx context.Context, method, action string, query url.Values, payload any) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/api/3/action/%s", c.baseURL, action)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, eris.Wrapf(err, "ckan: encode %s", action)
		}
	}

	maxAttempts := 1
	if method == http.MethodGet {
		maxAttempts = 3
	}
	backoff := time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "ckan: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, eris.Wrapf(err, "ckan: create %s request", action)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = eris.Wrapf(err, "ckan: %s", action)
		} else {
			data, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if readErr != nil {
				return nil, eris.Wrapf(readErr, "ckan: read %s response", action)
			}
			if !retryableStatusCode(resp.StatusCode) {
				return decode(action, resp.StatusCode, data)
			}
			lastErr = eris.Errorf("ckan: %s status %d", action, resp.StatusCode)
		}

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return nil, lastErr
}

func decode(action string, status int, data []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if status != http.StatusOK {
			return nil, eris.Errorf("ckan: %s unexpected status %d", action, status)
		}
		return nil, eris.Wrapf(err, "ckan: decode %s response", action)
	}
	if !env.Success || status != http.StatusOK {
		msg := http.StatusText(status)
		if env.Error != nil {
			msg = strings.TrimSpace(env.Error.Type + " " + env.Error.Message)
		}
		return nil, eris.Errorf("ckan: %s failed (%d): %s", action, status, msg)
	}
	return env.Result, nil
}

func (c *httpClient) PackageShow(ctx context.Context, id string) (*Package, error) {
	raw, err := c.call(ctx, http.MethodGet, "package_show", url.Values{"id": {id}}, nil)
	if err != nil {
		return nil, err
	}
	var pkg Package
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return nil, eris.Wrap(err, "ckan: unmarshal package")
	}
	return &pkg, nil
}

func (c *httpClient) PackageSearch(ctx context.Context, fq string, rows, start int) (*SearchResult, error) {
	q := url.Values{
		"fq":    {fq},
		"rows":  {strconv.Itoa(rows)},
		"start": {strconv.Itoa(start)},
	}
	raw, err := c.call(ctx, http.MethodGet, "package_search", q, nil)
	if err != nil {
		return nil, err
	}
	var res SearchResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, eris.Wrap(err, "ckan: unmarshal search result")
	}
	return &res, nil
}

func (c *httpClient) UpdatePCoded(ctx context.Context, resourceID string, pcoded bool) error {
	payload := map[string]any{"id": resourceID, "p_coded": pcoded}
	_, err := c.call(ctx, http.MethodPost, "hdx_p_coded_resource_update", nil, payload)
	return err
}
