// Package models defines the transient request and response shapes exchanged with the mobile client.
//
// Nothing here is persisted. Every value lives for the duration of a single request:
//   - [TopItemsQuery] : query parameters for the top-artists and top-songs endpoints
//   - [PlaylistCreationRequest] : JSON body for the create-playlist endpoint
//   - [PlaylistCreated] : success envelope wrapping the upstream playlist object verbatim
//   - [ErrorResponse] : envelope for errors originating in the relay itself
//
// Request types carry a Validate method; validation is presence-only. Values such as the time range
// and track identifiers are forwarded verbatim and only the upstream API decides whether they are valid.
package models
