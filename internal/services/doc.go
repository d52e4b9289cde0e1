// Package services talks to the Spotify Web API on behalf of the relay.
//
// # Upstream Client
//
// [UpstreamClient] attaches the caller's bearer token, issues the request and returns an [APIResponse]
// holding the status code, headers, raw body and parsed JSON. It never turns a non-2xx status into an error;
// it logs the upstream body at warn level and lets the caller decide. Errors are reserved for transport
// failures and wrap [shared.ErrAPIRequest] (plus [shared.ErrTimeout] when a deadline expired).
//
// # Service Interface
//
// [Service] lists the upstream calls the relay forwards. [SpotifyService] implements it with one method per
// endpoint:
//   - GET    /me/top/artists, /me/top/tracks
//   - POST   /users/{user_id}/playlists
//   - POST   /playlists/{playlist_id}/tracks
//   - DELETE /playlists/{playlist_id}/followers
//
// Track IDs become URIs with [TrackURI]; order and duplicates are preserved.
//
// # Token Refresh
//
// [SpotifyAuth] exchanges the configured refresh token for an access token using [oauth2] with credentials sent
// in the form body. It is used only by the CLI, never by request handlers, and implements [OAuthService] for the
// authorization code login flow that mints the refresh token in the first place ([SpotifyAuth.Exchange]).
package services
