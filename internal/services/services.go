// package services defines interface Service for the Spotify Web API calls the relay forwards
package services

import (
	"context"

	"github.com/desertthunder/spotrelay/internal/models"
)

// Service defines the upstream operations the relay exposes. Every method returns the raw upstream response;
// an error means the upstream could not be reached.
type Service interface {
	// TopArtists fetches the user's top artists for the time range.
	TopArtists(ctx context.Context, token string, timeRange models.TimeRange) (*APIResponse, error)

	// TopTracks fetches the user's top tracks for the time range.
	TopTracks(ctx context.Context, token string, timeRange models.TimeRange) (*APIResponse, error)

	// CreatePlaylist creates a playlist owned by userID.
	CreatePlaylist(ctx context.Context, token, userID string, playlist NewPlaylist) (*APIResponse, error)

	// AddTracks appends track URIs to a playlist, preserving order.
	AddTracks(ctx context.Context, token, playlistID string, uris []string) (*APIResponse, error)

	// UnfollowPlaylist removes the playlist from the owner's library, which is how Spotify deletes playlists.
	UnfollowPlaylist(ctx context.Context, token, playlistID string) (*APIResponse, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// NewPlaylist is the body of the create-playlist upstream call.
type NewPlaylist struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}
