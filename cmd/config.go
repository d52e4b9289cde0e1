package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/desertthunder/spotrelay/internal/shared"
	"github.com/urfave/cli/v3"
)

// ConfigInit writes the embedded example configuration. Existing files are never overwritten.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	if path == "" {
		return fmt.Errorf("%w: --path", shared.ErrMissingArgument)
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("%s %s\n", r.palette.OK("✓ Wrote"), path)
	r.writePlain("%s\n", r.palette.Help("Set spotify.client_id and spotify.client_secret, then run: spotrelay token login"))
	return nil
}

// ConfigCheck loads the effective configuration and reports whether it is usable.
func (r *Runner) ConfigCheck(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		r.writePlain("%s\n", r.palette.Warn(fmt.Sprintf("⚠ %s not found; using defaults and environment", path)))
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		r.writePlain("%s\n", r.palette.Err("✗ Invalid configuration"))
		return err
	}

	r.writePlainHeader("Configuration")
	r.writePlain("listen:            %s\n", config.Server.Addr())
	r.writePlain("spotify api:       %s\n", config.Spotify.APIBaseURL)
	r.writePlain("refresh ready:     %v\n", config.Spotify.HasRefreshCredentials())
	r.writePlain("rollback orphans:  %v\n", config.Relay.RollbackOrphans)
	r.writePlain("redact errors:     %v\n", config.Relay.RedactUpstreamErrors)
	r.writePlain("log level:         %s\n", config.Log.Level)
	r.writePlain("%s\n", r.palette.OK("✓ Configuration is valid"))
	return nil
}
