package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotrelay/internal/models"
	"github.com/desertthunder/spotrelay/internal/services"
	"github.com/desertthunder/spotrelay/internal/shared"
)

// DefaultPlaylistDescription is attached to every playlist the relay creates unless configured otherwise.
const DefaultPlaylistDescription = "Created via my app"

// Step names one upstream call of the create-playlist sequence.
type Step string

const (
	StepCreatePlaylist Step = "create_playlist"
	StepAddTracks      Step = "add_tracks"
)

// UpstreamError reports an upstream rejection during playlist creation.
//
// StatusCode and Body are the failing call's response, verbatim. PlaylistID is set when the playlist was
// already created, i.e. when the failure left it orphaned.
type UpstreamError struct {
	Step       Step
	StatusCode int
	Body       []byte
	IsJSON     bool
	PlaylistID string
	RolledBack bool
}

func newUpstreamError(step Step, resp *services.APIResponse) *UpstreamError {
	return &UpstreamError{
		Step:       step,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
		IsJSON:     resp.IsJSON,
	}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s rejected by spotify: status %d", e.Step, e.StatusCode)
}

// PlaylistEngineOpts configures a [PlaylistEngine].
type PlaylistEngineOpts struct {
	Description     string
	RollbackOrphans bool // unfollow the playlist when adding tracks fails
	Logger          *log.Logger
}

// PlaylistEngine runs the two-step create-then-populate sequence against a [services.Service].
//
// It keeps nothing between calls and is safe for concurrent use.
type PlaylistEngine struct {
	spotify         services.Service
	description     string
	rollbackOrphans bool
	logger          *log.Logger
}

// NewPlaylistEngine creates a new [PlaylistEngine].
func NewPlaylistEngine(srv services.Service, opts PlaylistEngineOpts) *PlaylistEngine {
	if opts.Description == "" {
		opts.Description = DefaultPlaylistDescription
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	return &PlaylistEngine{
		spotify:         srv,
		description:     opts.Description,
		rollbackOrphans: opts.RollbackOrphans,
		logger:          shared.WithLogger(opts.Logger, "component", "playlist"),
	}
}

// CreatePlaylistResult is the outcome of a successful [PlaylistEngine.CreatePlaylist].
type CreatePlaylistResult struct {
	PlaylistID string
	Playlist   json.RawMessage // create step response, taken before tracks were added
	TrackURIs  []string
	SnapshotID string
}

// CreatePlaylist creates a private playlist for req.UserID and appends req.TrackIDs to it.
//
// Step one must answer 201 or the sequence stops before step two is issued. Step two must answer 200 or 201.
// Upstream rejections come back as [*UpstreamError]; transport failures wrap [shared.ErrAPIRequest].
//
// A failure in step two leaves an empty playlist behind. It is logged with its ID and, only when
// RollbackOrphans is set, unfollowed. The returned error is the step two failure either way.
func (e *PlaylistEngine) CreatePlaylist(ctx context.Context, req *models.PlaylistCreationRequest) (*CreatePlaylistResult, error) {
	if e.spotify == nil {
		return nil, fmt.Errorf("%w: spotify service not initialized", shared.ErrServiceUnavailable)
	}

	created, err := e.spotify.CreatePlaylist(ctx, req.Token, req.UserID, services.NewPlaylist{
		Name:        req.PlaylistName,
		Description: e.description,
		Public:      false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}
	if created.StatusCode != http.StatusCreated {
		return nil, newUpstreamError(StepCreatePlaylist, created)
	}

	raw, err := created.RawJSON()
	if err != nil {
		return nil, err
	}

	var playlist models.Playlist
	if err := json.Unmarshal(raw, &playlist); err != nil || playlist.ID == "" {
		return nil, fmt.Errorf("%w: created playlist has no id", shared.ErrInvalidUpstreamResponse)
	}

	logger := e.logger.With("playlist_id", playlist.ID, "user_id", req.UserID)
	logger.Debug("playlist created", "name", req.PlaylistName)

	uris := services.TrackURIs(req.TrackIDs)

	added, err := e.spotify.AddTracks(ctx, req.Token, playlist.ID, uris)
	if err != nil {
		e.orphaned(ctx, logger, req.Token, playlist.ID)
		return nil, fmt.Errorf("failed to add tracks to playlist %s: %w", playlist.ID, err)
	}
	if !added.StatusIn(http.StatusOK, http.StatusCreated) {
		upErr := newUpstreamError(StepAddTracks, added)
		upErr.PlaylistID = playlist.ID
		upErr.RolledBack = e.orphaned(ctx, logger, req.Token, playlist.ID)
		return nil, upErr
	}

	logger.Info("playlist populated", "tracks", len(uris))

	return &CreatePlaylistResult{
		PlaylistID: playlist.ID,
		Playlist:   raw,
		TrackURIs:  uris,
		SnapshotID: snapshotID(added),
	}, nil
}

// orphaned records a playlist left empty by a failed add-tracks call and, if enabled, unfollows it.
// It reports whether the rollback succeeded.
func (e *PlaylistEngine) orphaned(ctx context.Context, logger *log.Logger, token, playlistID string) bool {
	if !e.rollbackOrphans {
		logger.Warn("playlist left without tracks; no rollback configured")
		return false
	}

	// the inbound request may already be cancelled; the cleanup call still has to go out
	resp, err := e.spotify.UnfollowPlaylist(context.WithoutCancel(ctx), token, playlistID)
	switch {
	case err != nil:
		logger.Error("rollback failed; playlist left without tracks", "error", err)
		return false
	case !resp.Success():
		logger.Error("rollback rejected; playlist left without tracks", "status", resp.StatusCode)
		return false
	default:
		logger.Warn("playlist rolled back after add-tracks failure")
		return true
	}
}

func snapshotID(resp *services.APIResponse) string {
	if data, ok := resp.JSONData.(map[string]any); ok {
		if id, ok := data["snapshot_id"].(string); ok {
			return id
		}
	}
	return ""
}

// IsUpstreamRejection reports whether err carries an upstream status to mirror, returning it.
func IsUpstreamRejection(err error) (*UpstreamError, bool) {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr, true
	}
	return nil, false
}
