package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/spotrelay/internal/server"
	"github.com/desertthunder/spotrelay/internal/services"
	"github.com/desertthunder/spotrelay/internal/shared"
	"github.com/desertthunder/spotrelay/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve starts the relay and blocks until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	if host := cmd.String("host"); host != "" {
		config.Server.Host = host
	}
	if port := cmd.Int("port"); port != 0 {
		config.Server.Port = int(port)
	}

	srv, err := r.buildServer(config)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("relaying to spotify", "service", r.spotifyName(), "api", config.Spotify.APIBaseURL)
	r.writePlain("%s listening on http://%s\n", r.palette.OK("spotrelay"), srv.Addr())
	return srv.Run(ctx)
}

// buildServer wires the relay from config: upstream client, Spotify service, playlist engine, handlers.
func (r *Runner) buildServer(config *shared.Config) (*server.Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if r.spotify == nil {
		r.spotify = services.NewSpotifyService(services.NewUpstreamClient(services.UpstreamOpts{
			BaseURL:    config.Spotify.APIBaseURL,
			HTTPClient: r.httpClient,
			Timeout:    config.Spotify.Timeout,
			Logger:     r.logger,
		}))
	}
	spotify := r.spotify

	if config.Relay.RollbackOrphans {
		r.logger.Info("orphaned playlists will be unfollowed after add-tracks failures")
	}
	if config.Relay.RedactUpstreamErrors {
		r.logger.Info("upstream error bodies will be redacted")
	}

	engine := tasks.NewPlaylistEngine(spotify, tasks.PlaylistEngineOpts{
		Description:     config.Relay.PlaylistDescription,
		RollbackOrphans: config.Relay.RollbackOrphans,
		Logger:          r.logger,
	})

	relay := server.NewRelayHandler(spotify, engine, server.RelayHandlerOpts{
		Logger:               r.logger,
		MaxBodyBytes:         config.Server.MaxBodyBytes,
		RedactUpstreamErrors: config.Relay.RedactUpstreamErrors,
	})

	router := server.NewRelayRouter(relay, server.RouterOpts{
		Logger:         r.logger,
		RateLimitRPS:   config.Server.RateLimitRPS,
		RateLimitBurst: config.Server.RateLimitBurst,
	})

	return server.NewServer(router, config.Server, r.logger), nil
}

func (r *Runner) spotifyName() string {
	if r.spotify == nil {
		return ""
	}
	return r.spotify.Name()
}
