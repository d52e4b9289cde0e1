package main

import (
	"context"
	"os"

	"github.com/desertthunder/spotrelay/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{
		ConfigPath: "config.toml",
		Logger:     logger,
	})

	app := newApp(runner)

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}

func newApp(runner *Runner) *cli.Command {
	return &cli.Command{
		Name:     "spotrelay",
		Usage:    "Relay between a mobile client and the Spotify Web API",
		Version:  "0.1.0",
		Commands: runner.register(),
	}
}
