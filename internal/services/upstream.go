// Upstream client for raw, authenticated calls to the Spotify Web API
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotrelay/internal/shared"
)

// DefaultBaseURL is the Spotify Web API root.
const DefaultBaseURL = "https://api.spotify.com/v1"

// UpstreamClient issues bearer-authenticated requests and hands back the status and parsed body untouched.
//
// A non-2xx status is not an error: the caller decides what it means.
type UpstreamClient struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *log.Logger
}

// UpstreamOpts configures an [UpstreamClient].
type UpstreamOpts struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration // per call; zero means the caller's context is the only deadline
	Logger     *log.Logger
}

// NewUpstreamClient creates a new client for the Spotify Web API.
func NewUpstreamClient(opts UpstreamOpts) *UpstreamClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	return &UpstreamClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		timeout:    opts.Timeout,
		logger:     shared.WithLogger(opts.Logger, "component", "upstream"),
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// StatusIn reports whether the response status is one of codes.
func (r *APIResponse) StatusIn(codes ...int) bool {
	for _, code := range codes {
		if r.StatusCode == code {
			return true
		}
	}
	return false
}

// Success reports whether the response status is 2xx.
func (r *APIResponse) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// RawJSON returns the body for verbatim pass-through.
//
// Returns [shared.ErrInvalidUpstreamResponse] when the body is not JSON.
func (r *APIResponse) RawJSON() (json.RawMessage, error) {
	if !r.IsJSON {
		return nil, fmt.Errorf("%w: status %d, %d byte non-JSON body", shared.ErrInvalidUpstreamResponse, r.StatusCode, len(r.Body))
	}
	return json.RawMessage(r.Body), nil
}

// Call performs a request against endpoint (relative to the base URL) with the bearer token attached.
//
// params are encoded as the query string; a non-nil body is sent as JSON.
// Errors are returned only when no response was obtained.
func (c *UpstreamClient) Call(ctx context.Context, method, endpoint, token string, params url.Values, body any) (*APIResponse, error) {
	fullURL := c.baseURL + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("calling spotify", "method", method, "endpoint", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w: %v", shared.ErrAPIRequest, shared.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w: failed to read response: %v", shared.ErrAPIRequest, shared.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrAPIRequest, err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}

	var jsonData any
	if err := json.Unmarshal(data, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	if !apiResp.Success() {
		c.logger.Warn("spotify API error",
			"method", method, "endpoint", endpoint, "status", resp.StatusCode, "body", string(data))
	}

	return apiResp, nil
}

// Get performs a GET request with the given query parameters.
func (c *UpstreamClient) Get(ctx context.Context, endpoint, token string, params url.Values) (*APIResponse, error) {
	return c.Call(ctx, http.MethodGet, endpoint, token, params, nil)
}

// Post performs a POST request with a JSON body.
func (c *UpstreamClient) Post(ctx context.Context, endpoint, token string, body any) (*APIResponse, error) {
	return c.Call(ctx, http.MethodPost, endpoint, token, nil, body)
}

// Delete performs a DELETE request without a body.
func (c *UpstreamClient) Delete(ctx context.Context, endpoint, token string) (*APIResponse, error) {
	return c.Call(ctx, http.MethodDelete, endpoint, token, nil, nil)
}
