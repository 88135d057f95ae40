// Package database provides the privileged Supabase REST integration.
//
// All queries here run with the service-role key and therefore bypass
// row-level security. Role checks and moderation mutations go through
// this path on purpose: resolving a role through the actor's own
// permissions would let a hostile actor hide or spoof it.
package database

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"os"
	"strings"
	"time"
)

// Client wraps the Supabase REST API with the service-role key.
type Client struct {
	url        string
	serviceKey string
	httpClient *http.Client
}

// Config holds Supabase connection configuration.
type Config struct {
	URL        string
	ServiceKey string
}

// NewClient creates a new privileged Supabase client.
func NewClient(cfg Config) (*Client, error) {
	url := cfg.URL
	if url == "" {
		url = os.Getenv("SUPABASE_URL")
	}
	key := cfg.ServiceKey
	if key == "" {
		key = os.Getenv("SUPABASE_SERVICE_KEY")
	}

	if url == "" {
		return nil, fmt.Errorf("SUPABASE_URL is required")
	}
	if key == "" {
		return nil, fmt.Errorf("SUPABASE_SERVICE_KEY is required")
	}

	parsed, err := neturl.Parse(url)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("SUPABASE_URL must be a valid URL")
	}
	if parsed.User != nil {
		return nil, fmt.Errorf("SUPABASE_URL must not include user info")
	}

	transport := http.DefaultTransport
	if base, ok := http.DefaultTransport.(*http.Transport); ok {
		cloned := base.Clone()
		if cloned.TLSClientConfig != nil {
			cloned.TLSClientConfig = cloned.TLSClientConfig.Clone()
			if cloned.TLSClientConfig.MinVersion < tls.VersionTLS12 {
				cloned.TLSClientConfig.MinVersion = tls.VersionTLS12
			}
		} else {
			cloned.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		transport = cloned
	}

	return &Client{
		url:        strings.TrimRight(url, "/"),
		serviceKey: key,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}, nil
}

const maxResponseBytes = 8 << 20 // 8 MiB

// Error is a structured PostgREST error response.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("supabase API error %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404/406 PostgREST error, which is
// what a filtered single-row read returns when no row matches.
func IsNotFound(err error) bool {
	var apiErr *Error
	if ok := asError(err, &apiErr); !ok {
		return false
	}
	return apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode == http.StatusNotAcceptable
}

// IsConflict reports whether err is a uniqueness conflict.
func IsConflict(err error) bool {
	var apiErr *Error
	if ok := asError(err, &apiErr); !ok {
		return false
	}
	return apiErr.StatusCode == http.StatusConflict
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Request makes an HTTP request to the Supabase REST API. The query is a
// raw PostgREST filter string, e.g. "id=eq.42&status=eq.pending".
func (c *Client) Request(ctx context.Context, method, table string, body interface{}, query string) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.url, table)
	if query != "" {
		url += "?" + query
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(respBody)),
		}
	}
	return respBody, nil
}

// Select fetches rows matching the filter into dst.
func (c *Client) Select(ctx context.Context, table, query string, dst interface{}) error {
	body, err := c.Request(ctx, http.MethodGet, table, nil, query)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dst)
}

// Insert inserts a record and decodes the representation into dst when
// dst is non-nil.
func (c *Client) Insert(ctx context.Context, table string, record, dst interface{}) error {
	body, err := c.Request(ctx, http.MethodPost, table, record, "")
	if err != nil {
		return err
	}
	if dst == nil {
		return nil
	}
	return json.Unmarshal(body, dst)
}

// Update patches rows matching the filter and decodes the returned
// representation into dst when dst is non-nil.
func (c *Client) Update(ctx context.Context, table, query string, patch, dst interface{}) error {
	body, err := c.Request(ctx, http.MethodPatch, table, patch, query)
	if err != nil {
		return err
	}
	if dst == nil {
		return nil
	}
	return json.Unmarshal(body, dst)
}

// Delete removes rows matching the filter.
func (c *Client) Delete(ctx context.Context, table, query string) ([]byte, error) {
	return c.Request(ctx, http.MethodDelete, table, nil, query)
}

// Eq builds an equality filter term.
func Eq(column string, value interface{}) string {
	return fmt.Sprintf("%s=eq.%v", column, value)
}

// IsNull builds a null-check filter term.
func IsNull(column string) string {
	return column + "=is.null"
}

// NotNull builds a not-null filter term.
func NotNull(column string) string {
	return column + "=not.is.null"
}

// And joins filter terms into a query string.
func And(terms ...string) string {
	return strings.Join(terms, "&")
}

// Order builds an ordering term.
func Order(column, direction string) string {
	return fmt.Sprintf("order=%s.%s", column, direction)
}
