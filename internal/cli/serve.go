package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/shopfeed/backend/internal/config"
	"github.com/shopfeed/backend/internal/database"
	"github.com/shopfeed/backend/internal/realtime"
	"github.com/shopfeed/backend/internal/router"
	sentryscrub "github.com/shopfeed/backend/internal/sentry"
)

const shutdownTimeout = 10 * time.Second

func NewServeCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:                   cfg.SentryDSN,
			Environment:           cfg.SentryEnvironment,
			AttachStacktrace:      true,
			SendDefaultPII:        false,
			BeforeSend:            sentryscrub.ScrubEvent,
			BeforeSendTransaction: sentryscrub.ScrubTransaction,
		})
		if err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	sqlDB, err := database.New(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB); err != nil {
		return err
	}

	registry, closeRegistry, err := newRegistry(cfg)
	if err != nil {
		return err
	}
	defer closeRegistry()

	handler, sockets := router.New(ctx, cfg, sqlDB, registry)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", slog.String("addr", srv.Addr), slog.Bool("distributed", cfg.Distributed()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down", slog.Int("open_sockets", sockets.Count()))

	// Hijacked connections are invisible to Shutdown, so close them first.
	sockets.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newRegistry picks the NATS-backed registry when NATS_URL is set.
func newRegistry(cfg *config.Config) (realtime.Registry, func(), error) {
	if !cfg.Distributed() {
		return realtime.NewMemoryRegistry(), func() {}, nil
	}

	nc, err := realtime.ConnectNATS(cfg.NATSURL)
	if err != nil {
		return nil, nil, err
	}
	registry, err := realtime.NewNATSRegistry(nc, cfg.NATSSubjectPrefix)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}

	slog.Info("broadcasting through nats",
		slog.String("url", nc.ConnectedUrl()),
		slog.String("prefix", cfg.NATSSubjectPrefix),
	)
	return registry, func() {
		_ = registry.Close()
		_ = nc.Drain()
	}, nil
}
