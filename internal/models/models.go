// package models defines the data model for the relay
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/desertthunder/spotrelay/internal/shared"
)

// TimeRange is the upstream query window. It is forwarded verbatim; the constants are the windows Spotify documents.
type TimeRange string

const (
	ShortTerm  TimeRange = "short_term"
	MediumTerm TimeRange = "medium_term"
	LongTerm   TimeRange = "long_term"
)

// ValidationError collects per-field problems found in an inbound request.
type ValidationError struct {
	Fields map[string]string
}

func (v *ValidationError) add(field, problem string) {
	if v.Fields == nil {
		v.Fields = make(map[string]string)
	}
	v.Fields[field] = problem
}

func (v *ValidationError) orNil() error {
	if len(v.Fields) == 0 {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	names := make([]string, 0, len(v.Fields))
	for name := range v.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, v.Fields[name]))
	}
	return fmt.Sprintf("%v: %s", shared.ErrInvalidInput, strings.Join(parts, "; "))
}

func (v *ValidationError) Unwrap() error {
	return shared.ErrInvalidInput
}

// TopItemsQuery carries the query parameters of GET /top-artists and GET /top-songs.
type TopItemsQuery struct {
	TimeRange TimeRange
	Token     string
}

// TopItemsQueryFromValues reads the query without normalizing either value.
func TopItemsQueryFromValues(values url.Values) TopItemsQuery {
	return TopItemsQuery{
		TimeRange: TimeRange(values.Get("time_range")),
		Token:     values.Get("token"),
	}
}

func (q TopItemsQuery) Validate() error {
	v := &ValidationError{}
	if q.TimeRange == "" {
		v.add("time_range", "required")
	}
	if q.Token == "" {
		v.add("token", "required")
	}
	return v.orNil()
}

// PlaylistCreationRequest is the JSON body of POST /create-playlist.
type PlaylistCreationRequest struct {
	Token        string   `json:"token"`
	UserID       string   `json:"user_id"`
	PlaylistName string   `json:"playlist_name"`
	TrackIDs     []string `json:"track_ids"`
}

// DecodePlaylistCreationRequest decodes and validates a create-playlist body.
//
// Malformed JSON and wrong field types are reported as a [*ValidationError] so callers can map every boundary
// problem to the same bad-request response.
func DecodePlaylistCreationRequest(r io.Reader) (*PlaylistCreationRequest, error) {
	var req PlaylistCreationRequest

	dec := json.NewDecoder(r)
	if err := dec.Decode(&req); err != nil {
		v := &ValidationError{}
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &typeErr):
			field := typeErr.Field
			if field == "" {
				field = "body"
			}
			v.add(field, fmt.Sprintf("expected %s", typeErr.Type))
		case errors.Is(err, io.EOF):
			v.add("body", "required")
		default:
			v.add("body", "malformed JSON")
		}
		return nil, v
	}

	// a body is exactly one JSON value
	var trailing json.RawMessage
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		v := &ValidationError{}
		v.add("body", "malformed JSON")
		return nil, v
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// Validate checks presence only. An empty track list is allowed; a missing one is not.
func (p PlaylistCreationRequest) Validate() error {
	v := &ValidationError{}
	if p.Token == "" {
		v.add("token", "required")
	}
	if p.UserID == "" {
		v.add("user_id", "required")
	}
	if p.PlaylistName == "" {
		v.add("playlist_name", "required")
	}
	if p.TrackIDs == nil {
		v.add("track_ids", "required")
	}
	return v.orNil()
}

// Playlist is the part of the upstream playlist object the relay reads.
type Playlist struct {
	ID string `json:"id"`
}

// PlaylistCreated is returned after both upstream steps succeed.
//
// Playlist is the create-playlist response body exactly as the upstream sent it, so it predates the added tracks.
type PlaylistCreated struct {
	Message  string          `json:"message"`
	Playlist json.RawMessage `json:"playlist"`
}

// PlaylistCreatedMessage is the fixed success message.
const PlaylistCreatedMessage = "Playlist created successfully!"

// Error kinds reported in [ErrorResponse].
const (
	KindBadRequest = "bad_request"
	KindUpstream   = "upstream"
	KindInternal   = "internal"
)

// ErrorResponse is the JSON envelope for errors produced by the relay rather than the upstream API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Status  int    `json:"status,omitempty"`
	Details any    `json:"details,omitempty"`
}
