// package testing contains shared testing utilities
//
// Tests in package services must import it from an external test package, since [MockService] depends on services.
package testing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/desertthunder/spotrelay/internal/models"
	"github.com/desertthunder/spotrelay/internal/services"
)

// MockService is a test double for [services.Service]. Unset funcs return a 200 with an empty JSON object.
type MockService struct {
	TopArtistsFunc       func(ctx context.Context, token string, timeRange models.TimeRange) (*services.APIResponse, error)
	TopTracksFunc        func(ctx context.Context, token string, timeRange models.TimeRange) (*services.APIResponse, error)
	CreatePlaylistFunc   func(ctx context.Context, token, userID string, playlist services.NewPlaylist) (*services.APIResponse, error)
	AddTracksFunc        func(ctx context.Context, token, playlistID string, uris []string) (*services.APIResponse, error)
	UnfollowPlaylistFunc func(ctx context.Context, token, playlistID string) (*services.APIResponse, error)
}

func emptyOK() *services.APIResponse {
	return JSONResponse(http.StatusOK, `{}`)
}

// JSONResponse builds an [services.APIResponse] the way the upstream client would for a JSON body.
func JSONResponse(status int, body string) *services.APIResponse {
	resp := &services.APIResponse{StatusCode: status, Body: []byte(body), Headers: http.Header{}}
	var data any
	if err := json.Unmarshal([]byte(body), &data); err == nil {
		resp.IsJSON = true
		resp.JSONData = data
	}
	return resp
}

func (m *MockService) TopArtists(ctx context.Context, token string, timeRange models.TimeRange) (*services.APIResponse, error) {
	if m.TopArtistsFunc != nil {
		return m.TopArtistsFunc(ctx, token, timeRange)
	}
	return emptyOK(), nil
}

func (m *MockService) TopTracks(ctx context.Context, token string, timeRange models.TimeRange) (*services.APIResponse, error) {
	if m.TopTracksFunc != nil {
		return m.TopTracksFunc(ctx, token, timeRange)
	}
	return emptyOK(), nil
}

func (m *MockService) CreatePlaylist(ctx context.Context, token, userID string, playlist services.NewPlaylist) (*services.APIResponse, error) {
	if m.CreatePlaylistFunc != nil {
		return m.CreatePlaylistFunc(ctx, token, userID, playlist)
	}
	return JSONResponse(http.StatusCreated, `{"id":"mock"}`), nil
}

func (m *MockService) AddTracks(ctx context.Context, token, playlistID string, uris []string) (*services.APIResponse, error) {
	if m.AddTracksFunc != nil {
		return m.AddTracksFunc(ctx, token, playlistID, uris)
	}
	return JSONResponse(http.StatusCreated, `{"snapshot_id":"mock"}`), nil
}

func (m *MockService) UnfollowPlaylist(ctx context.Context, token, playlistID string) (*services.APIResponse, error) {
	if m.UnfollowPlaylistFunc != nil {
		return m.UnfollowPlaylistFunc(ctx, token, playlistID)
	}
	return &services.APIResponse{StatusCode: http.StatusOK}, nil
}

func (m *MockService) Name() string { return "mock" }

// RecordedCall is one request received by [FakeSpotify].
type RecordedCall struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	ContentType   string
	Body          []byte
}

type fakeResponse struct {
	status int
	body   string
}

// FakeSpotify is an httptest server standing in for the Spotify Web API. It records every request.
//
// Routes without a registered response answer 404 with a Spotify-shaped error body.
type FakeSpotify struct {
	*httptest.Server

	mu     sync.Mutex
	calls  []RecordedCall
	routes map[string]fakeResponse
}

// NewFakeSpotify starts a fake upstream that is closed when the test ends.
func NewFakeSpotify(t *testing.T) *FakeSpotify {
	t.Helper()

	f := &FakeSpotify{routes: make(map[string]fakeResponse)}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

// On registers the response for method and path.
func (f *FakeSpotify) On(method, path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = fakeResponse{status: status, body: body}
}

// Calls returns every recorded request in arrival order.
func (f *FakeSpotify) Calls() []RecordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedCall(nil), f.calls...)
}

// CallsTo returns the recorded requests for method and path.
func (f *FakeSpotify) CallsTo(method, path string) []RecordedCall {
	var matched []RecordedCall
	for _, c := range f.Calls() {
		if c.Method == method && c.Path == path {
			matched = append(matched, c)
		}
	}
	return matched
}

func (f *FakeSpotify) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.calls = append(f.calls, RecordedCall{
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.RawQuery,
		Authorization: r.Header.Get("Authorization"),
		ContentType:   r.Header.Get("Content-Type"),
		Body:          body,
	})
	resp, ok := f.routes[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	if !ok {
		resp = fakeResponse{
			status: http.StatusNotFound,
			body:   fmt.Sprintf(`{"error":{"status":404,"message":"no route for %s %s"}}`, r.Method, r.URL.Path),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	io.WriteString(w, resp.body)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}
