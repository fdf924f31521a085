package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"furbook.app/petpals/config"
	"furbook.app/petpals/observability"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:           "petpals",
	Short:         "PetPals backend services",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:       "serve [gateway|user|post|message|noti|all]",
	Short:     "Run one service, or every service in this process",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"gateway", "user", "post", "message", "noti", "all"},
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		logger := observability.InitLogger(name, cfg.Env, cfg.LogLevel)
		if name != "all" {
			return runners[name](cmd.Context(), logger)
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		for svc, run := range runners {
			g.Go(func() error {
				if err := run(ctx, logger.With().Str("component", svc).Logger()); err != nil {
					return fmt.Errorf("%s: %w", svc, err)
				}
				return nil
			})
		}
		return g.Wait()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create every table and index the services need",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.InitLogger("migrate", cfg.Env, cfg.LogLevel)
		return migrateAll(cmd.Context(), logger)
	},
}

type runner func(ctx context.Context, logger zerolog.Logger) error

var runners = map[string]runner{
	"gateway": runGateway,
	"user":    runUser,
	"post":    runPost,
	"message": runMessage,
	"noti":    runNoti,
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "petpals:", err)
		stop()
		os.Exit(1)
	}
}
