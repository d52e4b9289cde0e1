// Spotify API implementation of [Service]
//
// Endpoints based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"fmt"
	"net/url"

	"github.com/desertthunder/spotrelay/internal/models"
)

// TrackURIPrefix turns a track ID into the URI form the playlist endpoints require.
const TrackURIPrefix = "spotify:track:"

// TrackURI returns the Spotify URI for a track ID.
func TrackURI(id string) string {
	return TrackURIPrefix + id
}

// TrackURIs maps IDs to URIs in order, keeping duplicates. The result is never nil, so it encodes as [].
func TrackURIs(ids []string) []string {
	uris := make([]string, 0, len(ids))
	for _, id := range ids {
		uris = append(uris, TrackURI(id))
	}
	return uris
}

type addTracksBody struct {
	URIs []string `json:"uris"`
}

// SpotifyService implements [Service] on top of an [UpstreamClient].
//
// It holds no per-user state; the bearer token travels with every call.
type SpotifyService struct {
	upstream *UpstreamClient
}

// NewSpotifyService creates a new Spotify service backed by the given upstream client.
func NewSpotifyService(upstream *UpstreamClient) *SpotifyService {
	if upstream == nil {
		upstream = NewUpstreamClient(UpstreamOpts{})
	}
	return &SpotifyService{upstream: upstream}
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// TopArtists retrieves GET /me/top/artists.
func (s *SpotifyService) TopArtists(ctx context.Context, token string, timeRange models.TimeRange) (*APIResponse, error) {
	return s.topItems(ctx, "artists", token, timeRange)
}

// TopTracks retrieves GET /me/top/tracks.
func (s *SpotifyService) TopTracks(ctx context.Context, token string, timeRange models.TimeRange) (*APIResponse, error) {
	return s.topItems(ctx, "tracks", token, timeRange)
}

func (s *SpotifyService) topItems(ctx context.Context, kind, token string, timeRange models.TimeRange) (*APIResponse, error) {
	params := url.Values{"time_range": {string(timeRange)}}
	return s.upstream.Get(ctx, "/me/top/"+kind, token, params)
}

// CreatePlaylist calls POST /users/{user_id}/playlists.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, token, userID string, playlist NewPlaylist) (*APIResponse, error) {
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	return s.upstream.Post(ctx, endpoint, token, playlist)
}

// AddTracks calls POST /playlists/{playlist_id}/tracks.
func (s *SpotifyService) AddTracks(ctx context.Context, token, playlistID string, uris []string) (*APIResponse, error) {
	if uris == nil {
		uris = []string{}
	}
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return s.upstream.Post(ctx, endpoint, token, addTracksBody{URIs: uris})
}

// UnfollowPlaylist calls DELETE /playlists/{playlist_id}/followers.
func (s *SpotifyService) UnfollowPlaylist(ctx context.Context, token, playlistID string) (*APIResponse, error) {
	endpoint := fmt.Sprintf("/playlists/%s/followers", url.PathEscape(playlistID))
	return s.upstream.Delete(ctx, endpoint, token)
}
