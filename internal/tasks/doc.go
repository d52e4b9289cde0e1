// Package tasks orchestrates multi-call operations against the Spotify Web API.
//
// # Playlist Creation
//
// [PlaylistEngine.CreatePlaylist] runs two strictly ordered upstream calls:
//
//  1. POST /users/{user_id}/playlists with a fixed description and public=false.
//     Anything but 201 stops the sequence; the add-tracks call is never issued.
//  2. POST /playlists/{id}/tracks with spotify:track:<id> URIs in request order, duplicates kept.
//     200 and 201 are success.
//
// On success the caller receives the step one playlist object verbatim. It does not list the added tracks
// because it was produced before step two ran.
//
// # Failures
//
// Upstream rejections are returned as [*UpstreamError] carrying the failing status and body so the HTTP layer
// can mirror them. Nothing is retried.
//
// A step two failure leaves an empty playlist in the user's library. By default it is left in place and logged
// with its ID. With RollbackOrphans set, the engine unfollows it (Spotify has no hard delete); the outcome is
// logged and recorded on the error but never changes what the client is told.
package tasks
