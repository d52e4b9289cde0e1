package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotrelay/internal/models"
	"github.com/desertthunder/spotrelay/internal/services"
	"github.com/desertthunder/spotrelay/internal/shared"
	"github.com/desertthunder/spotrelay/internal/tasks"
)

// DefaultMaxBodyBytes caps create-playlist bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

// RelayHandlerOpts configures a [RelayHandler].
type RelayHandlerOpts struct {
	Logger               *log.Logger
	MaxBodyBytes         int64
	RedactUpstreamErrors bool // replace mirrored upstream error bodies with a generic envelope
}

// RelayHandler serves the client-facing endpoints and forwards them to Spotify.
type RelayHandler struct {
	spotify      services.Service
	playlists    *tasks.PlaylistEngine
	logger       *log.Logger
	maxBodyBytes int64
	redact       bool
}

// NewRelayHandler creates a new [RelayHandler].
func NewRelayHandler(srv services.Service, playlists *tasks.PlaylistEngine, opts RelayHandlerOpts) *RelayHandler {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	return &RelayHandler{
		spotify:      srv,
		playlists:    playlists,
		logger:       shared.WithLogger(opts.Logger, "component", "relay"),
		maxBodyBytes: opts.MaxBodyBytes,
		redact:       opts.RedactUpstreamErrors,
	}
}

// Register mounts the relay endpoints on router.
func (h *RelayHandler) Register(router Router) {
	router.Handle(http.MethodGet, "/top-artists", http.HandlerFunc(h.TopArtists))
	router.Handle(http.MethodGet, "/top-songs", http.HandlerFunc(h.TopSongs))
	router.Handle(http.MethodPost, "/create-playlist", http.HandlerFunc(h.CreatePlaylist))
	router.Handle(http.MethodGet, "/health", http.HandlerFunc(h.Health))
}

type topItemsFunc func(ctx context.Context, token string, timeRange models.TimeRange) (*services.APIResponse, error)

// TopArtists handles GET /top-artists.
//
// The upstream body is returned with a 200 whatever the upstream status was.
func (h *RelayHandler) TopArtists(w http.ResponseWriter, r *http.Request) {
	if h.spotify == nil {
		h.failure(w, shared.ErrServiceUnavailable)
		return
	}
	h.topItems(w, r, "artists", h.spotify.TopArtists)
}

// TopSongs handles GET /top-songs.
func (h *RelayHandler) TopSongs(w http.ResponseWriter, r *http.Request) {
	if h.spotify == nil {
		h.failure(w, shared.ErrServiceUnavailable)
		return
	}
	h.topItems(w, r, "tracks", h.spotify.TopTracks)
}

func (h *RelayHandler) topItems(w http.ResponseWriter, r *http.Request, kind string, fetch topItemsFunc) {
	logger := h.requestLogger(r)

	query := models.TopItemsQueryFromValues(r.URL.Query())
	if err := query.Validate(); err != nil {
		h.badRequest(w, err)
		return
	}

	resp, err := fetch(r.Context(), query.Token, query.TimeRange)
	if err != nil {
		logger.Error("top items request failed", "kind", kind, "error", err)
		h.failure(w, err)
		return
	}

	body, err := resp.RawJSON()
	if err != nil {
		logger.Error("top items response unusable", "kind", kind, "error", err)
		h.failure(w, err)
		return
	}

	if !resp.Success() {
		logger.Debug("passing upstream error through", "kind", kind, "status", resp.StatusCode)
	}
	writeRaw(w, http.StatusOK, "application/json", body)
}

// CreatePlaylist handles POST /create-playlist.
func (h *RelayHandler) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)

	req, err := models.DecodePlaylistCreationRequest(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		h.badRequest(w, err)
		return
	}

	result, err := h.playlists.CreatePlaylist(r.Context(), req)
	if err != nil {
		if upErr, ok := tasks.IsUpstreamRejection(err); ok {
			logger.Warn("playlist creation rejected upstream",
				"step", upErr.Step, "status", upErr.StatusCode, "playlist_id", upErr.PlaylistID)
			h.mirror(w, upErr)
			return
		}

		logger.Error("playlist creation failed", "error", err)
		h.failure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.PlaylistCreated{
		Message:  models.PlaylistCreatedMessage,
		Playlist: result.Playlist,
	})
}

// Health answers liveness probes. It never calls upstream.
func (h *RelayHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// mirror answers with the failing upstream call's status and body.
func (h *RelayHandler) mirror(w http.ResponseWriter, upErr *tasks.UpstreamError) {
	if h.redact {
		writeJSON(w, upErr.StatusCode, models.ErrorResponse{
			Error:  "upstream request failed",
			Kind:   models.KindUpstream,
			Status: upErr.StatusCode,
		})
		return
	}

	contentType := "application/json"
	if !upErr.IsJSON {
		contentType = "text/plain; charset=utf-8"
	}
	writeRaw(w, upErr.StatusCode, contentType, upErr.Body)
}

func (h *RelayHandler) badRequest(w http.ResponseWriter, err error) {
	var v *models.ValidationError
	if errors.As(err, &v) {
		writeError(w, http.StatusBadRequest, models.KindBadRequest, shared.ErrInvalidInput.Error(), v.Fields)
		return
	}
	writeError(w, http.StatusBadRequest, models.KindBadRequest, err.Error(), nil)
}

// failure maps relay-side errors. Upstream rejections never reach it.
func (h *RelayHandler) failure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, models.KindInternal, "service unavailable", nil)
	case errors.Is(err, shared.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, models.KindInternal, "upstream timed out", nil)
	case errors.Is(err, shared.ErrAPIRequest), errors.Is(err, shared.ErrInvalidUpstreamResponse):
		writeError(w, http.StatusBadGateway, models.KindInternal, "upstream unavailable", nil)
	default:
		writeError(w, http.StatusInternalServerError, models.KindInternal, "internal server error", nil)
	}
}

func (h *RelayHandler) requestLogger(r *http.Request) *log.Logger {
	return h.logger.With("request_id", GetRequestID(r.Context()), "path", r.URL.Path)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeRaw(w, status, "application/json", data)
}

func writeRaw(w http.ResponseWriter, status int, contentType string, body []byte) {
	if len(body) > 0 {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, status int, kind, message string, details any) {
	writeJSON(w, status, models.ErrorResponse{Error: message, Kind: kind, Details: details})
}
