package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/spotrelay/internal/models"
	"github.com/desertthunder/spotrelay/internal/services"
	"github.com/desertthunder/spotrelay/internal/shared"
	"github.com/desertthunder/spotrelay/internal/tasks"
	tu "github.com/desertthunder/spotrelay/internal/testing"
)

type relayOpts struct {
	rollback bool
	redact   bool
	maxBody  int64
}

func newRelay(t *testing.T, opts relayOpts) (http.Handler, *tu.FakeSpotify) {
	t.Helper()

	fake := tu.NewFakeSpotify(t)
	srv := services.NewSpotifyService(services.NewUpstreamClient(services.UpstreamOpts{BaseURL: fake.URL}))
	engine := tasks.NewPlaylistEngine(srv, tasks.PlaylistEngineOpts{RollbackOrphans: opts.rollback})
	relay := NewRelayHandler(srv, engine, RelayHandlerOpts{
		MaxBodyBytes:         opts.maxBody,
		RedactUpstreamErrors: opts.redact,
	})
	return NewRelayRouter(relay, RouterOpts{}), fake
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("expected JSON error body, got %q: %v", rec.Body.String(), err)
	}
	return resp
}

const playlistBody = `{"token":"tok","user_id":"u1","playlist_name":"Mix","track_ids":["a","b","a"]}`

func TestTopItems(t *testing.T) {
	endpoints := []struct {
		route    string
		upstream string
	}{
		{"/top-artists", "/me/top/artists"},
		{"/top-songs", "/me/top/tracks"},
	}

	for _, ep := range endpoints {
		t.Run(ep.route, func(t *testing.T) {
			t.Run("returns upstream body verbatim", func(t *testing.T) {
				h, fake := newRelay(t, relayOpts{})
				body := `{"items":[{"name":"Artist"}],"total":1}`
				fake.On(http.MethodGet, ep.upstream, http.StatusOK, body)

				rec := serve(h, http.MethodGet, ep.route+"?time_range=short_term&token=abc", "")

				if rec.Code != http.StatusOK {
					t.Fatalf("expected 200, got %d", rec.Code)
				}
				if rec.Body.String() != body {
					t.Errorf("expected %s, got %s", body, rec.Body.String())
				}

				call := fake.CallsTo(http.MethodGet, ep.upstream)[0]
				if call.Authorization != "Bearer abc" {
					t.Errorf("expected bearer token, got %q", call.Authorization)
				}
				if call.Query != "time_range=short_term" {
					t.Errorf("expected time_range forwarded, got %q", call.Query)
				}
			})

			t.Run("passes upstream errors through with 200", func(t *testing.T) {
				h, fake := newRelay(t, relayOpts{})
				body := `{"error":{"status":401,"message":"Invalid access token"}}`
				fake.On(http.MethodGet, ep.upstream, http.StatusUnauthorized, body)

				rec := serve(h, http.MethodGet, ep.route+"?time_range=long_term&token=expired", "")

				if rec.Code != http.StatusOK {
					t.Errorf("expected 200, got %d", rec.Code)
				}
				if rec.Body.String() != body {
					t.Errorf("expected upstream error body verbatim, got %s", rec.Body.String())
				}
			})

			t.Run("unknown time range is forwarded", func(t *testing.T) {
				h, fake := newRelay(t, relayOpts{})
				fake.On(http.MethodGet, ep.upstream, http.StatusBadRequest, `{"error":{"status":400}}`)

				serve(h, http.MethodGet, ep.route+"?time_range=forever&token=abc", "")

				if q := fake.Calls()[0].Query; q != "time_range=forever" {
					t.Errorf("expected verbatim time_range, got %q", q)
				}
			})

			t.Run("missing parameters", func(t *testing.T) {
				tests := []struct {
					name  string
					query string
					field string
				}{
					{"no token", "?time_range=short_term", "token"},
					{"no time_range", "?token=abc", "time_range"},
					{"empty token", "?time_range=short_term&token=", "token"},
				}

				for _, tt := range tests {
					t.Run(tt.name, func(t *testing.T) {
						h, fake := newRelay(t, relayOpts{})

						rec := serve(h, http.MethodGet, ep.route+tt.query, "")

						if rec.Code != http.StatusBadRequest {
							t.Errorf("expected 400, got %d", rec.Code)
						}
						resp := decodeError(t, rec)
						if resp.Kind != models.KindBadRequest {
							t.Errorf("expected bad_request kind, got %s", resp.Kind)
						}
						details, _ := resp.Details.(map[string]any)
						if _, ok := details[tt.field]; !ok {
							t.Errorf("expected %s in details, got %v", tt.field, resp.Details)
						}
						if len(fake.Calls()) != 0 {
							t.Error("expected no upstream call")
						}
					})
				}
			})

			t.Run("non-JSON upstream body", func(t *testing.T) {
				h, fake := newRelay(t, relayOpts{})
				fake.On(http.MethodGet, ep.upstream, http.StatusBadGateway, `<html>upstream down</html>`)

				rec := serve(h, http.MethodGet, ep.route+"?time_range=short_term&token=abc", "")

				if rec.Code != http.StatusBadGateway {
					t.Errorf("expected 502, got %d", rec.Code)
				}
				if decodeError(t, rec).Kind != models.KindInternal {
					t.Error("expected internal kind")
				}
			})

			t.Run("unreachable upstream", func(t *testing.T) {
				h, fake := newRelay(t, relayOpts{})
				fake.Close()

				rec := serve(h, http.MethodGet, ep.route+"?time_range=short_term&token=abc", "")

				if rec.Code != http.StatusBadGateway {
					t.Errorf("expected 502, got %d", rec.Code)
				}
			})
		})
	}
}

func TestCreatePlaylist(t *testing.T) {
	created := `{"id":"P","name":"Mix","tracks":{"total":0}}`

	t.Run("success", func(t *testing.T) {
		h, fake := newRelay(t, relayOpts{})
		fake.On(http.MethodPost, "/users/u1/playlists", http.StatusCreated, created)
		fake.On(http.MethodPost, "/playlists/P/tracks", http.StatusCreated, `{"snapshot_id":"s"}`)

		rec := serve(h, http.MethodPost, "/create-playlist", playlistBody)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		want := fmt.Sprintf(`{"message":"Playlist created successfully!","playlist":%s}`, created)
		if rec.Body.String() != want {
			t.Errorf("expected %s, got %s", want, rec.Body.String())
		}

		add := fake.CallsTo(http.MethodPost, "/playlists/P/tracks")
		if len(add) != 1 || string(add[0].Body) != `{"uris":["spotify:track:a","spotify:track:b","spotify:track:a"]}` {
			t.Errorf("unexpected add-tracks calls %+v", add)
		}
	})

	t.Run("empty track list", func(t *testing.T) {
		h, fake := newRelay(t, relayOpts{})
		fake.On(http.MethodPost, "/users/u1/playlists", http.StatusCreated, created)
		fake.On(http.MethodPost, "/playlists/P/tracks", http.StatusCreated, `{"snapshot_id":"s"}`)

		rec := serve(h, http.MethodPost, "/create-playlist",
			`{"token":"tok","user_id":"u1","playlist_name":"Mix","track_ids":[]}`)

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if body := fake.CallsTo(http.MethodPost, "/playlists/P/tracks")[0].Body; string(body) != `{"uris":[]}` {
			t.Errorf("expected empty uris, got %s", body)
		}
	})

	t.Run("create step rejection is mirrored", func(t *testing.T) {
		h, fake := newRelay(t, relayOpts{})
		body := `{"error":{"status":401,"message":"The access token expired"}}`
		fake.On(http.MethodPost, "/users/u1/playlists", http.StatusUnauthorized, body)

		rec := serve(h, http.MethodPost, "/create-playlist", playlistBody)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
		if rec.Body.String() != body {
			t.Errorf("expected upstream body verbatim, got %s", rec.Body.String())
		}
		if len(fake.CallsTo(http.MethodPost, "/playlists/P/tracks")) != 0 {
			t.Error("add tracks must not be called")
		}
	})

	t.Run("add tracks rejection is mirrored", func(t *testing.T) {
		h, fake := newRelay(t, relayOpts{})
		body := `{"error":{"status":400,"message":"Invalid track uri: spotify:track:a"}}`
		fake.On(http.MethodPost, "/users/u1/playlists", http.StatusCreated, created)
		fake.On(http.MethodPost, "/playlists/P/tracks", http.StatusBadRequest, body)

		rec := serve(h, http.MethodPost, "/create-playlist", playlistBody)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if rec.Body.String() != body {
			t.Errorf("expected upstream body verbatim, got %s", rec.Body.String())
		}
		if len(fake.CallsTo(http.MethodDelete, "/playlists/P/followers")) != 0 {
			t.Error("expected no rollback by default")
		}
	})

	t.Run("rollback does not change the response", func(t *testing.T) {
		h, fake := newRelay(t, relayOpts{rollback: true})
		body := `{"error":{"status":500,"message":"Server error"}}`
		fake.On(http.MethodPost, "/users/u1/playlists", http.StatusCreated, created)
		fake.On(http.MethodPost, "/playlists/P/tracks", http.StatusInternalServerError, body)
		fake.On(http.MethodDelete, "/playlists/P/followers", http.StatusOK, ``)

		rec := serve(h, http.MethodPost, "/create-playlist", playlistBody)

		if rec.Code != http.StatusInternalServerError || rec.Body.String() != body {
			t.Errorf("expected mirrored 500, got %d %s", rec.Code, rec.Body.String())
		}
		if len(fake.CallsTo(http.MethodDelete, "/playlists/P/followers")) != 1 {
			t.Error("expected one rollback call")
		}
	})

	t.Run("redacted upstream errors", func(t *testing.T) {
		h, fake := newRelay(t, relayOpts{redact: true})
		fake.On(http.MethodPost, "/users/u1/playlists", http.StatusForbidden, `{"error":{"status":403,"message":"secret detail"}}`)

		rec := serve(h, http.MethodPost, "/create-playlist", playlistBody)

		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "secret detail") {
			t.Errorf("expected upstream body hidden, got %s", rec.Body.String())
		}
		resp := decodeError(t, rec)
		if resp.Kind != models.KindUpstream || resp.Status != http.StatusForbidden {
			t.Errorf("unexpected redacted body %+v", resp)
		}
	})

	t.Run("non-JSON rejection is mirrored as text", func(t *testing.T) {
		h, fake := newRelay(t, relayOpts{})
		fake.On(http.MethodPost, "/users/u1/playlists", http.StatusServiceUnavailable, `upstream maintenance`)

		rec := serve(h, http.MethodPost, "/create-playlist", playlistBody)

		if rec.Code != http.StatusServiceUnavailable || rec.Body.String() != "upstream maintenance" {
			t.Errorf("expected mirrored 503, got %d %q", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
			t.Errorf("expected text content type, got %q", ct)
		}
	})

	t.Run("invalid bodies", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{"empty body", ""},
			{"malformed JSON", `{"token":`},
			{"missing token", `{"user_id":"u1","playlist_name":"Mix","track_ids":[]}`},
			{"missing track_ids", `{"token":"tok","user_id":"u1","playlist_name":"Mix"}`},
			{"track_ids not a list", `{"token":"tok","user_id":"u1","playlist_name":"Mix","track_ids":"a"}`},
			{"non-string track id", `{"token":"tok","user_id":"u1","playlist_name":"Mix","track_ids":[1]}`},
			{"trailing garbage", playlistBody + "garbage"},
			{"two objects", playlistBody + playlistBody},
			{"top level array", `[1,2]`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				h, fake := newRelay(t, relayOpts{})

				rec := serve(h, http.MethodPost, "/create-playlist", tt.body)

				if rec.Code != http.StatusBadRequest {
					t.Errorf("expected 400, got %d", rec.Code)
				}
				if decodeError(t, rec).Kind != models.KindBadRequest {
					t.Error("expected bad_request kind")
				}
				if len(fake.Calls()) != 0 {
					t.Error("expected no upstream call")
				}
			})
		}
	})

	t.Run("oversized body", func(t *testing.T) {
		h, fake := newRelay(t, relayOpts{maxBody: 16})

		rec := serve(h, http.MethodPost, "/create-playlist", playlistBody)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if len(fake.Calls()) != 0 {
			t.Error("expected no upstream call")
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		h, fake := newRelay(t, relayOpts{})
		fake.Close()

		rec := serve(h, http.MethodPost, "/create-playlist", playlistBody)

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		mock := &tu.MockService{
			CreatePlaylistFunc: func(context.Context, string, string, services.NewPlaylist) (*services.APIResponse, error) {
				return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, shared.ErrTimeout)
			},
		}
		relay := NewRelayHandler(mock, tasks.NewPlaylistEngine(mock, tasks.PlaylistEngineOpts{}), RelayHandlerOpts{})

		rec := serve(NewRelayRouter(relay, RouterOpts{}), http.MethodPost, "/create-playlist", playlistBody)

		if rec.Code != http.StatusGatewayTimeout {
			t.Errorf("expected 504, got %d", rec.Code)
		}
	})
}

func TestRelayWithoutService(t *testing.T) {
	relay := NewRelayHandler(nil, tasks.NewPlaylistEngine(nil, tasks.PlaylistEngineOpts{}), RelayHandlerOpts{})
	h := NewRelayRouter(relay, RouterOpts{})

	for _, tc := range []struct{ method, target, body string }{
		{http.MethodGet, "/top-artists?time_range=short_term&token=t", ""},
		{http.MethodGet, "/top-songs?time_range=short_term&token=t", ""},
		{http.MethodPost, "/create-playlist", playlistBody},
	} {
		if rec := serve(h, tc.method, tc.target, tc.body); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s: expected 503, got %d", tc.method, tc.target, rec.Code)
		}
	}
}

func TestHealth(t *testing.T) {
	h, fake := newRelay(t, relayOpts{})

	rec := serve(h, http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK || rec.Body.String() != `{"status":"ok"}` {
		t.Errorf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
	if len(fake.Calls()) != 0 {
		t.Error("health must not call upstream")
	}
}

func TestRouting(t *testing.T) {
	h, _ := newRelay(t, relayOpts{})

	t.Run("unknown path", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/nope", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
		decodeError(t, rec)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/create-playlist", "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("request id on every response", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/nope", "")
		if rec.Header().Get(RequestIDHeader) == "" {
			t.Error("expected generated request id")
		}
	})
}
