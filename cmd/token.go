package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/desertthunder/spotrelay/internal/server"
	"github.com/desertthunder/spotrelay/internal/services"
	"github.com/desertthunder/spotrelay/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const loginTimeout = 2 * time.Minute

var openBrowser = shared.OpenBrowser

// tokenOutput is the JSON shape of `token refresh --json`.
type tokenOutput struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry"`
}

// TokenRefresh exchanges the configured refresh token for a new access token and prints it.
func (r *Runner) TokenRefresh(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	auth := services.NewSpotifyAuth(&config.Spotify, r.httpClient, r.logger)
	token, err := auth.Refresh(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(tokenOutput{
			AccessToken:  token.AccessToken,
			TokenType:    token.Type(),
			RefreshToken: rotated(config.Spotify.RefreshToken, token),
			Expiry:       token.Expiry,
		}, cmd.Bool("pretty"))
	}

	r.writePlain("%s\n", r.palette.OK("✓ Access token refreshed"))
	r.writePlain("access_token: %s\n", token.AccessToken)
	if !token.Expiry.IsZero() {
		r.writePlain("expires:      %s\n", token.Expiry.Format(time.RFC3339))
	}
	if refresh := rotated(config.Spotify.RefreshToken, token); refresh != "" {
		r.writePlain("%s\n", r.palette.Warn("Spotify rotated the refresh token; update REFRESH_TOKEN:"))
		r.writePlain("refresh_token: %s\n", refresh)
	}
	return nil
}

// rotated returns the token's refresh token when it differs from the one sent.
func rotated(previous string, token *oauth2.Token) string {
	if token.RefreshToken == "" || token.RefreshToken == previous {
		return ""
	}
	return token.RefreshToken
}

// TokenLogin runs the authorization code flow once and prints the resulting refresh token.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges auth code for tokens.
func (r *Runner) TokenLogin(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	if config.Spotify.ClientID == "" || config.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: spotify client_id and client_secret must be set", shared.ErrMissingCredentials)
	}

	timeout := cmd.Duration("timeout")
	if timeout <= 0 {
		timeout = loginTimeout
	}

	auth := services.NewSpotifyAuth(&config.Spotify, r.httpClient, r.logger)
	token, err := r.doOAuth(ctx, config, auth, timeout)
	if err != nil {
		return err
	}

	r.writePlainHeader("Authorization successful")
	r.writePlain("refresh_token: %s\n", token.RefreshToken)
	r.writePlain("access_token:  %s\n\n", token.AccessToken)
	r.writePlain("%s\n", r.palette.Help("Export it as REFRESH_TOKEN or set spotify.refresh_token in the config file."))
	return nil
}

// doOAuth serves the callback on the configured address until one callback arrives or timeout elapses.
func (r *Runner) doOAuth(ctx context.Context, config *shared.Config, auth services.OAuthService, timeout time.Duration) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := auth.GetAuthURL(state)
	oauthHandler := server.NewOAuthHandler(auth, state)
	router := server.NewChiRouter()
	router.Use(server.RequestID, server.AccessLog(r.logger))
	router.Handler(oauthHandler)

	ln, err := net.Listen("tcp", config.Server.Addr())
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", config.Server.Addr(), err)
	}

	serveCtx, stopServer := context.WithCancel(ctx)
	callbackServer := server.NewServer(router, config.Server, r.logger)
	var serveErr error
	serveDone := make(chan struct{})
	go func() {
		serveErr = callbackServer.Serve(serveCtx, ln)
		close(serveDone)
	}()
	defer func() {
		stopServer()
		<-serveDone
		if serveErr != nil {
			r.logger.Warn("error shutting down callback server", "error", serveErr)
		}
	}()

	r.logger.Info("waiting for OAuth callback", "addr", ln.Addr().String(), "redirect_uri", config.Spotify.RedirectURI)

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := openBrowser(authURL); err != nil {
		r.logger.Warn("failed to open browser automatically", "error", err)
		r.writePlainln("%s", r.palette.Warn("⚠ Could not open browser automatically."))
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case <-serveDone:
		return nil, fmt.Errorf("callback server stopped before authorization completed")
	case <-timer.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, result.Error())
	}
	if result.Token == nil || result.Token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token received", shared.ErrAuthFailed)
	}

	return result.Token, nil
}
