package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Byak-ko/Qualification-work-sub001/internal/config"
	"github.com/Byak-ko/Qualification-work-sub001/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries what every subcommand needs once the root has run.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCommand(ctx).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand(ctx context.Context) *cobra.Command {
	a := &app{v: config.NewViper()}

	cmd := &cobra.Command{
		Use:           "rating-api",
		Short:         "Teacher rating platform API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.cfg = config.FromViper(a.v)
			a.logger = logging.New(a.cfg.LogLevel, a.cfg.LogFormat)
			slog.SetDefault(a.logger)
			return nil
		},
	}

	cmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")
	_ = a.v.BindPFlag("LOG_LEVEL", cmd.PersistentFlags().Lookup("log-level"))
	_ = a.v.BindPFlag("DATABASE_URL", cmd.PersistentFlags().Lookup("database-url"))

	cmd.AddCommand(
		serveCommand(ctx, a),
		migrateCommand(a),
		seedCommand(a),
	)
	return cmd
}
