package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"goal-tracker/internal/database"
	"goal-tracker/internal/infrastructure/config"
	"goal-tracker/internal/infrastructure/di"
	"goal-tracker/internal/logger"
	"goal-tracker/internal/metrics"
	"goal-tracker/internal/migration"
	"goal-tracker/internal/server"
)

const tokenPurgeInterval = time.Hour

var configPath string

var rootCmd = &cobra.Command{
	Use:           "goal-tracker",
	Short:         "Personal goal tracker with magic-link sign-in",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run migrations and start the HTTP server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE:  runMigrate,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the YAML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// bootstrap loads config, opens the database and applies migrations.
func bootstrap(ctx context.Context) (*config.Config, *database.Database, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	if _, err := migration.Up(ctx, db.DB()); err != nil {
		db.Close()
		return nil, nil, err
	}
	return cfg, db, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, db, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	v, err := migration.Version(cmd.Context(), db.DB())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "database %s at schema version %d\n", cfg.Database.Path, v)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, db, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	log, err := logger.New(cfg.Log, db.DB())
	if err != nil {
		return err
	}
	defer log.Sync()

	m := metrics.NewCollector()
	m.WatchDB(db.DB())

	c, err := di.New(cfg, db, log, m, di.Options{})
	if err != nil {
		return err
	}
	srv := server.New(c)

	go purgeExpiredTokens(ctx, c, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			logger.Event(logger.EventSystemStart),
			zap.String("addr", srv.Addr()),
			zap.String("version", cfg.App.Version),
			zap.String("environment", cfg.App.Environment),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server", logger.Event(logger.EventSystemStop))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}

func purgeExpiredTokens(ctx context.Context, c *di.Container, log *zap.Logger) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.Tokens.DeleteExpired(ctx, time.Now())
			if err != nil {
				log.Warn("purging expired sign-in tokens failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Debug("purged expired sign-in tokens", zap.Int64("count", n))
			}
		}
	}
}
