package command

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stolasapp/cfgram/internal/app"
	"github.com/stolasapp/cfgram/internal/config"
	"github.com/stolasapp/cfgram/internal/oauth"
	"github.com/stolasapp/cfgram/internal/oauth/devprovider"
	"github.com/stolasapp/cfgram/internal/server"
	"github.com/stolasapp/cfgram/internal/storage"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "serve the places API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (runErr error) {
			cfg, logger, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			grp, ctx := errgroup.WithContext(cmd.Context())

			providers := oauth.FromConfig(cfg)

			// In dev mode, start the fake identity provider
			if cfg.DevMode {
				devAddr, err := serveDevProvider(ctx, grp, logger)
				if err != nil {
					return err
				}
				providers.Register(oauth.NewProvider("dev", devprovider.Config("http://"+devAddr), cfg.APIURL))
			}

			logger.InfoContext(ctx, "identity providers enabled", slog.Any("providers", providers.Names()))
			serveApp(ctx, grp, cfg, logger, store, providers)
			return grp.Wait()
		},
	}
}

func serveApp(
	ctx context.Context,
	grp *errgroup.Group,
	cfg *config.Config,
	logger *slog.Logger,
	store storage.Store,
	providers oauth.Providers,
) {
	handler := app.New(cfg, logger, store, providers)
	if _, err := server.Start(ctx, grp, logger, "app", cfg.WebAddress, handler); err != nil {
		grp.Go(func() error { return err })
	}
}

func serveDevProvider(
	ctx context.Context,
	grp *errgroup.Group,
	logger *slog.Logger,
) (string, error) {
	seed := devprovider.Seed()
	logger.InfoContext(ctx, "seeding dev identity provider", slog.Uint64("seed", seed))

	addr, err := server.Start(ctx, grp, logger, "dev identity provider", "127.0.0.1:0", devprovider.New(seed))
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}
