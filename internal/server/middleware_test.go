package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/spotrelay/internal/models"
	"github.com/desertthunder/spotrelay/internal/shared"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generates an id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		id := rec.Header().Get(RequestIDHeader)
		if id == "" || id != seen {
			t.Errorf("expected generated id in header and context, got %q and %q", id, seen)
		}
	})

	t.Run("reuses incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get(RequestIDHeader); got != "req-123" || seen != "req-123" {
			t.Errorf("expected req-123 echoed, got %q (context %q)", got, seen)
		}
	})

	t.Run("missing from context", func(t *testing.T) {
		if id := GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()); id != "" {
			t.Errorf("expected empty id, got %q", id)
		}
	})
}

func TestAccessLog(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  string
	}{
		{"success logs at info", http.StatusOK, "INFO"},
		{"client error logs at warn", http.StatusBadRequest, "WARN"},
		{"server error logs at error", http.StatusBadGateway, "ERRO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			h := RequestID(AccessLog(shared.NewLogger(buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})))

			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/top-artists?token=secret", nil))

			out := buf.String()
			if !strings.Contains(out, tt.level) {
				t.Errorf("expected %s level, got %q", tt.level, out)
			}
			if !strings.Contains(out, "path=/top-artists") {
				t.Errorf("expected path in log, got %q", out)
			}
			if strings.Contains(out, "secret") {
				t.Errorf("query string must not be logged: %q", out)
			}
		})
	}
}

func TestRecoverer(t *testing.T) {
	buf := &bytes.Buffer{}
	h := Recoverer(shared.NewLogger(buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), models.KindInternal) {
		t.Errorf("expected JSON error envelope, got %s", rec.Body.String())
	}
	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("expected panic to be logged, got %q", buf.String())
	}
}

func TestCORS(t *testing.T) {
	h := CORS(okHandler)

	t.Run("preflight from any origin", func(t *testing.T) {
		for _, origin := range []string{"http://localhost:19006", "https://app.example.com", "null"} {
			req := httptest.NewRequest(http.MethodOptions, "/create-playlist", nil)
			req.Header.Set("Origin", origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "Content-Type, X-Custom")
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusNoContent {
				t.Errorf("%s: expected 204, got %d", origin, rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != origin {
				t.Errorf("%s: expected origin echoed, got %q", origin, got)
			}
			if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, X-Custom" {
				t.Errorf("%s: expected requested headers echoed, got %q", origin, got)
			}
			if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
				t.Errorf("%s: expected credentials allowed, got %q", origin, got)
			}
		}
	})

	t.Run("simple request gets headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/top-songs", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected handler to run, got %d", rec.Code)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
			t.Error("expected allow origin header")
		}
	})

	t.Run("same origin untouched", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("expected no CORS headers without Origin")
		}
	})

	t.Run("preflight through the relay router", func(t *testing.T) {
		router, fake := newRelay(t, relayOpts{})
		req := httptest.NewRequest(http.MethodOptions, "/top-artists", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
		if len(fake.Calls()) != 0 {
			t.Error("preflight must not reach upstream")
		}
	})
}

func TestRateLimit(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := RateLimit(0, 0, shared.NewLogger(&bytes.Buffer{}))(okHandler)
		for range 50 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected no limiting, got %d", rec.Code)
			}
		}
	})

	t.Run("rejects beyond burst", func(t *testing.T) {
		h := RateLimit(0.001, 2, shared.NewLogger(&bytes.Buffer{}))(okHandler)

		codes := make([]int, 0, 3)
		for range 3 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			codes = append(codes, rec.Code)
		}

		if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
			t.Errorf("expected 200, 200, 429, got %v", codes)
		}
	})
}
