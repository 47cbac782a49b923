// Package dataclient implements the table-keyed backend contract against a remote
// backoffice service over HTTP.
package dataclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Skotchmaster/partsdesk/internal/backend"
)

const apiPrefix = "/api/v1"

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ backend.Backend = (*Client)(nil)

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

func (c *Client) SetToken(token string) {
	c.token = token
}

// APIError is a non-2xx answer. It unwraps to the matching backend sentinel.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return backend.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return backend.ErrValidation
	case http.StatusForbidden:
		return backend.ErrReadOnly
	case http.StatusConflict:
		return backend.ErrConflict
	}
	return nil
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Username    string    `json:"username"`
	Role        string    `json:"role"`
}

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var out LoginResponse
	body := map[string]string{"username": username, "password": password}
	if _, err := c.do(ctx, http.MethodPost, apiPrefix+"/auth/login", nil, body, &out); err != nil {
		return nil, err
	}
	c.token = out.AccessToken
	return &out, nil
}

func tablePath(table string, id ...uint) string {
	p := apiPrefix + "/tables/" + url.PathEscape(table)
	for _, i := range id {
		p += "/" + strconv.FormatUint(uint64(i), 10)
	}
	return p
}

func (c *Client) Insert(ctx context.Context, table string, fields any) (backend.Result, error) {
	var rows json.RawMessage
	status, err := c.do(ctx, http.MethodPost, tablePath(table), nil, fields, &rows)
	if err != nil {
		return backend.Result{}, err
	}
	return backend.NewResult(status, rows), nil
}

func (c *Client) Update(ctx context.Context, table string, id uint, fields any) (backend.Result, error) {
	status, err := c.do(ctx, http.MethodPatch, tablePath(table, id), nil, fields, nil)
	if err != nil {
		return backend.Result{}, err
	}
	return backend.NewResult(status, nil), nil
}

func (c *Client) Upsert(ctx context.Context, table string, id uint, fields any) (backend.Result, error) {
	var rows json.RawMessage
	status, err := c.do(ctx, http.MethodPut, tablePath(table, id), nil, fields, &rows)
	if err != nil {
		return backend.Result{}, err
	}
	return backend.NewResult(status, rows), nil
}

func (c *Client) Delete(ctx context.Context, table string, id uint) (backend.Result, error) {
	status, err := c.do(ctx, http.MethodDelete, tablePath(table, id), nil, nil, nil)
	if err != nil {
		return backend.Result{}, err
	}
	return backend.NewResult(status, nil), nil
}

func (c *Client) Query(ctx context.Context, table string, opts backend.QueryOptions) (json.RawMessage, error) {
	q := url.Values{}
	if opts.Select != "" {
		q.Set("select", opts.Select)
	}
	if opts.Filter != "" {
		q.Set("or", opts.Filter)
	}
	if opts.Order != "" {
		q.Set("order", opts.Order)
	}
	q.Set("from", strconv.Itoa(opts.Range.From))
	q.Set("to", strconv.Itoa(opts.Range.To))

	var rows json.RawMessage
	if _, err := c.do(ctx, http.MethodGet, tablePath(table), q, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) (int, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode body: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &e) != nil || e.Message == "" {
			e.Message = strings.TrimSpace(string(data))
		}
		return resp.StatusCode, &APIError{Status: resp.StatusCode, Message: e.Message}
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// IsUnauthorized reports whether err is a 401 from the service.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}
