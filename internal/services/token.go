package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotrelay/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// AuthScopes are requested by the login flow: reading top items and writing playlists.
var AuthScopes = []string{
	"user-top-read",
	"playlist-modify-private",
	"playlist-modify-public",
}

// OAuthService exposes what the authorization code callback flow needs.
type OAuthService interface {
	GetAuthURL(state string) string                                   // GetAuthURL returns the consent page URL carrying state
	Exchange(ctx context.Context, code string) (*oauth2.Token, error) // Exchange trades the callback code for tokens
}

// SpotifyAuth refreshes access tokens and drives the one-off authorization code flow.
//
// It is the only consumer of the client credentials and refresh token and is never used while serving requests.
type SpotifyAuth struct {
	credentials *shared.SpotifyConfig
	config      *oauth2.Config
	httpClient  *http.Client
	logger      *log.Logger
}

// NewSpotifyAuth creates a new token refresher from the Spotify section of the configuration.
//
// httpClient and logger may be nil.
func NewSpotifyAuth(credentials *shared.SpotifyConfig, httpClient *http.Client, logger *log.Logger) *SpotifyAuth {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	authURL, tokenURL := credentials.AuthURL, credentials.TokenURL
	if authURL == "" {
		authURL = spotifyAuthURL
	}
	if tokenURL == "" {
		tokenURL = spotifyTokenURL
	}

	return &SpotifyAuth{
		credentials: credentials,
		config: &oauth2.Config{
			ClientID:     credentials.ClientID,
			ClientSecret: credentials.ClientSecret,
			RedirectURL:  credentials.RedirectURI,
			Scopes:       AuthScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
		logger:     shared.WithLogger(logger, "component", "token"),
	}
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (a *SpotifyAuth) GetAuthURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Context returns ctx carrying the configured HTTP client for [oauth2] calls.
func (a *SpotifyAuth) Context(ctx context.Context) context.Context {
	if a.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

// Refresh exchanges the configured refresh token for a new access token with a form-encoded refresh_token grant.
//
// Upstream rejections are logged with their body and returned as [shared.ErrRefreshFailed].
func (a *SpotifyAuth) Refresh(ctx context.Context) (*oauth2.Token, error) {
	if !a.credentials.HasRefreshCredentials() {
		return nil, fmt.Errorf("%w: client_id, client_secret and refresh_token are required", shared.ErrMissingCredentials)
	}

	source := a.config.TokenSource(a.Context(ctx), &oauth2.Token{RefreshToken: a.credentials.RefreshToken})

	token, err := source.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			status := 0
			if retrieveErr.Response != nil {
				status = retrieveErr.Response.StatusCode
			}
			a.logger.Error("error refreshing token", "status", status, "body", string(retrieveErr.Body))
			return nil, fmt.Errorf("%w: status %d", shared.ErrRefreshFailed, status)
		}

		a.logger.Error("error refreshing token", "error", err)
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	a.logger.Info("new access token", "access_token", token.AccessToken, "expiry", token.Expiry)
	return token, nil
}

// Exchange trades an authorization code from the login callback for a token pair.
func (a *SpotifyAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := a.config.Exchange(a.Context(ctx), code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			a.logger.Error("error exchanging code", "body", string(retrieveErr.Body))
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}
