package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/mimic/internal/api"
	"github.com/MikeSquared-Agency/mimic/internal/dataset"
	"github.com/MikeSquared-Agency/mimic/internal/hermes"
)

func newServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chunking API and rebuild on request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Port = port
			}
			ctx := cmd.Context()

			b, hc, cleanup, err := a.newBuilder(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if hc != nil {
				err := hc.Subscribe(hermes.SubjectBuildRequested, func(subject string, data []byte) {
					handleBuildRequest(ctx, a, b, data)
				})
				if err != nil {
					return err
				}

				if err := hc.Publish("swarm.agent.mimic.registered", map[string]any{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
					"port":      a.cfg.Port,
				}); err != nil {
					a.logger.Warn("failed to publish registration", "error", err)
				}
			} else {
				a.logger.Warn("NATS not configured, builds can only be requested over HTTP")
			}

			srv := api.NewServer(a.cfg.Port, a.cfg.APIToken, b, a.logger)
			a.logger.Info("mimic ready", "port", a.cfg.Port)
			if err := srv.Start(ctx); err != nil {
				return err
			}
			a.logger.Info("mimic stopped")
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (default from MIMIC_PORT)")
	return cmd
}

func handleBuildRequest(ctx context.Context, a *app, b *dataset.Builder, data []byte) {
	req, err := hermes.DecodeBuildRequest(data)
	if err != nil {
		a.logger.Warn("ignoring build request", "error", err)
		return
	}
	a.logger.Info("build requested", "data_dir", req.DataDir, "max_context_length", req.MaxContextLength)

	go func() {
		_, err := b.Build(ctx, dataset.Overrides{DataDir: req.DataDir, MaxContextLength: req.MaxContextLength})
		switch {
		case err == nil:
		case errors.Is(err, dataset.ErrBuildInProgress):
			a.logger.Info("build already running, request dropped")
		case errors.Is(err, context.Canceled):
		default:
			a.logger.Error("requested build failed", "error", err)
		}
	}()
}
