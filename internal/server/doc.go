// Package server provides the relay's HTTP surface: routing, middleware, handlers and server lifecycle.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [ChiRouter] implements it with chi;
// middleware is registered before routes and runs before route matching, so CORS preflights and unknown paths
// pass through it too.
//
// # Relay Endpoints
//
// [RelayHandler] serves:
//   - GET /top-artists and GET /top-songs: forwarded to /me/top/{artists,tracks}; the upstream JSON is returned
//     with a 200 whatever its status
//   - POST /create-playlist: create then populate via [tasks.PlaylistEngine]; a rejected step is mirrored
//     with its status and body
//   - GET /health
//
// Inputs are validated before any upstream call and rejected with a 400 [models.ErrorResponse].
// Relay-side failures use the same envelope: 502 when Spotify cannot be reached or answers with something other
// than JSON, 504 on upstream timeout, 500 on panic.
//
// # Middleware
//
// [NewRelayRouter] installs, outermost first: [RequestID], [AccessLog], [Recoverer], [CORS] and [RateLimit].
// The access log never records query strings, which carry bearer tokens.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the authorization code callback used by `spotrelay token login`. It validates the
// state parameter, exchanges the code and sends the result through a channel. It only processes one callback.
package server
