package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// RestClient is a generic row-CRUD binding against the platform's relational
// REST surface. One instance serves every table; rows are plain JSON-tagged
// structs.
//
// The client never retries and never enforces a timeout: a failed call is
// reported once to the caller, and a hung platform hangs the calling flow.
// Cancellation, where wanted, comes in through ctx.
type RestClient struct {
	baseURL    string
	key        string
	httpClient *http.Client
}

func NewRestClient(platformURL, key string) *RestClient {
	return &RestClient{
		baseURL:    strings.TrimRight(platformURL, "/"),
		key:        key,
		httpClient: &http.Client{},
	}
}

// PlatformError is a non-2xx response from the platform.
type PlatformError struct {
	Status  int
	Message string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("platform responded %d: %s", e.Status, e.Message)
}

// Filter restricts a query to rows matching column <op> value, e.g.
// Eq("job_id", id) → job_id=eq.<id>.
type Filter struct {
	Column string
	Op     string
	Value  string
}

func Eq(column, value string) Filter {
	return Filter{Column: column, Op: "eq", Value: value}
}

// Query shapes a Select call.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Insert posts one row and decodes the stored representation into out
// (pass nil to discard it).
func (c *RestClient) Insert(ctx context.Context, table string, row any, out any) error {
	body, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("[RestClient] failed to marshal %s row: %w", table, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, table, nil, body)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=representation")

	return c.doRow(req, table, out)
}

// Update patches every row matching the filters and decodes the first
// updated representation into out (pass nil to discard it).
func (c *RestClient) Update(ctx context.Context, table string, patch any, out any, filters ...Filter) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("[RestClient] failed to marshal %s patch: %w", table, err)
	}

	params := url.Values{}
	applyFilters(params, filters)

	req, err := c.newRequest(ctx, http.MethodPatch, table, params, body)
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=representation")

	return c.doRow(req, table, out)
}

// Select reads rows into out, which must be a pointer to a slice.
func (c *RestClient) Select(ctx context.Context, table string, out any, q Query) error {
	params := url.Values{}
	params.Set("select", "*")
	applyFilters(params, q.Filters)
	if q.OrderBy != "" {
		direction := "asc"
		if q.Desc {
			direction = "desc"
		}
		params.Set("order", q.OrderBy+"."+direction)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	req, err := c.newRequest(ctx, http.MethodGet, table, params, nil)
	if err != nil {
		return err
	}

	respBody, err := c.do(req, table)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("[RestClient] failed to decode %s rows: %w", table, err)
	}
	return nil
}

// HealthCheck probes the REST surface. It reports reachability only, so any
// HTTP answer counts as healthy.
func (c *RestClient) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+REST_PATH, nil)
	if err != nil {
		return false
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("User-Agent", USER_AGENT)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

func (c *RestClient) newRequest(ctx context.Context, method, table string, params url.Values, body []byte) (*http.Request, error) {
	endpoint := c.baseURL + REST_PATH + table
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("[RestClient] failed to build %s request: %w", table, err)
	}

	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("User-Agent", USER_AGENT)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// doRow executes a mutating request whose response is an array of affected
// rows and decodes the first one.
func (c *RestClient) doRow(req *http.Request, table string, out any) error {
	respBody, err := c.do(req, table)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(respBody, &rows); err != nil {
		return fmt.Errorf("[RestClient] failed to decode %s response: %w", table, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("[RestClient] %s returned no rows", table)
	}
	if err := json.Unmarshal(rows[0], out); err != nil {
		return fmt.Errorf("[RestClient] failed to decode %s row: %w", table, err)
	}
	return nil
}

func (c *RestClient) do(req *http.Request, table string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("[RestClient] %s request failed: %w", table, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("[RestClient] failed to read %s response: %w", table, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("[RestClient] Platform rejected request",
			slog.String("table", table),
			slog.Int("status", resp.StatusCode),
			getPreview(respBody))
		return nil, &PlatformError{Status: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	return respBody, nil
}

func applyFilters(params url.Values, filters []Filter) {
	for _, f := range filters {
		params.Set(f.Column, f.Op+"."+f.Value)
	}
}

func getPreview(respBody []byte) slog.Attr {
	raw := string(respBody)
	if len(raw) > 50 {
		raw = raw[:50]
	}
	return slog.String("raw_response", raw)
}
