package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/mimic/internal/dataset"
	"github.com/MikeSquared-Agency/mimic/internal/watcher"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		debounce time.Duration
		initial  bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild the dataset whenever exports in the data dir change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, _, cleanup, err := a.newBuilder(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			rebuild := func(ctx context.Context) {
				_, err := b.Build(ctx, dataset.Overrides{})
				switch {
				case err == nil, errors.Is(err, context.Canceled):
				case errors.Is(err, dataset.ErrNoInput):
					a.logger.Info("no exports yet, waiting")
				default:
					a.logger.Error("rebuild failed", "error", err)
				}
			}

			if initial {
				rebuild(ctx)
			}
			return watcher.New(a.cfg.DataDir, debounce, a.logger).Run(ctx, rebuild)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounce, "quiet period before a rebuild")
	cmd.Flags().BoolVar(&initial, "initial", true, "build once before watching")
	return cmd
}
