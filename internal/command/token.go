package command

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stolasapp/cfgram/internal/sec"
	"github.com/stolasapp/cfgram/internal/storage"
)

func tokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Bearer token commands",
	}
	cmd.AddCommand(
		tokenIssueCommand(),
		tokenVerifyCommand(),
	)
	return cmd
}

func tokenIssueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "issue NAME",
		Short: "Issue a bearer token",
		Long: "Issues a new bearer token for the user and prints it to stdout. Any token\n" +
			"previously issued to the user stops working.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			cfg, logger, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			user, err := store.FindUser(cmd.Context(), storage.UserByName, args[0])
			if err != nil {
				return err
			}
			token, err := sec.NewTokens([]byte(cfg.AppSecret), cfg.TokenTTL, store).Issue(cmd.Context(), user)
			if err != nil {
				return err
			}
			logger.InfoContext(cmd.Context(), "issued token", slog.String("name", user.Name))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
}

func tokenVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify TOKEN",
		Short: "Verify a bearer token",
		Long:  "Prints the name of the user currently holding the bearer token.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			cfg, _, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			user, err := sec.NewTokens([]byte(cfg.AppSecret), cfg.TokenTTL, store).Verify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), user.Name)
			return err
		},
	}
}
