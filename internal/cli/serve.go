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

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/classmate/internal/api"
	"github.com/ashureev/classmate/internal/chat"
	"github.com/ashureev/classmate/internal/config"
	"github.com/ashureev/classmate/internal/generation"
	"github.com/ashureev/classmate/internal/locker"
	"github.com/ashureev/classmate/internal/maintenance"
	"github.com/ashureev/classmate/internal/messaging"
	"github.com/ashureev/classmate/internal/transcript"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat service",
		Long:  "Run the webhook, chat API and internal callbacks together with the generation runner and maintenance worker.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd)
		},
	}
}

//nolint:funlen // Startup wiring is intentionally sequential to keep dependency setup explicit.
func (a *app) serve(cmd *cobra.Command) error {
	cfg := a.cfg
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting server", "port", cfg.Port)

	repo, err := a.openStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore(repo)
	slog.Info("Database connected", "path", cfg.DBPath)

	var lk locker.Locker = locker.NewLocal()
	if cfg.RedisAddr != "" {
		rl, err := locker.NewRedis(ctx, cfg.RedisAddr, cfg.LockTTL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer func() {
			if err := rl.Close(); err != nil {
				slog.Warn("Failed to close redis locker", "error", err)
			}
		}()
		lk = rl
		slog.Info("Using redis account locks", "addr", cfg.RedisAddr)
	}

	sender := newSender(cfg, a.logger)

	var recorder chat.Recorder
	if cfg.ConversationLog.Enabled {
		w, err := transcript.NewWriter(transcript.Config{
			Dir:       cfg.ConversationLog.Dir,
			QueueSize: cfg.ConversationLog.QueueSize,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize conversation log: %w", err)
		}
		defer func() {
			if err := w.Close(); err != nil {
				slog.Warn("Failed to flush conversation log", "error", err)
			}
		}()
		recorder = w
	}

	launcher, closeLauncher, err := newLauncher(cfg, a.logger)
	if err != nil {
		return err
	}
	defer closeLauncher()

	// The runner reports failures to the dispatcher, which is built after it.
	var dispatcher *chat.Dispatcher
	runner := generation.NewRunner(launcher, generation.Config{
		Workers:   cfg.Generation.Workers,
		QueueSize: cfg.Generation.QueueSize,
		Timeout:   cfg.Generation.Timeout,
	}, func(ctx context.Context, job generation.Job, err error) {
		dispatcher.FailGeneration(ctx, job, err)
	}, a.logger)

	chatCfg := chat.Config{
		Locker:             lk,
		Sender:             sender,
		Recorder:           recorder,
		GenerationEstimate: cfg.Generation.Estimate,
	}
	if launcher != nil {
		chatCfg.Generator = runner
	}
	dispatcher = chat.NewDispatcher(repo, chatCfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(api.NewHandler(repo, dispatcher, sender), cfg.WorkerSecret),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if cfg.WorkerSecret == "" {
		slog.Warn("WORKER_SECRET not set, internal routes will reject every request")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		return maintenance.NewWorker(repo, cfg.MaintenanceInterval, cfg.MessageLogRetention).Run(gctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Server stopped successfully")
	return nil
}

func newSender(cfg *config.Config, logger *slog.Logger) messaging.Sender {
	if !cfg.Twilio.Enabled() {
		slog.Info("Twilio not configured, outbound messages will only be logged")
		return messaging.NewLogSender(logger)
	}
	return messaging.NewTwilioSender(messaging.TwilioConfig{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		From:       cfg.Twilio.From,
		APIBase:    cfg.Twilio.APIBase,
	})
}

// newLauncher picks the generation transport. A nil launcher with a nil
// error means course generation is disabled.
func newLauncher(cfg *config.Config, logger *slog.Logger) (generation.Launcher, func(), error) {
	gen := cfg.Generation
	switch {
	case gen.GRPCAddr != "":
		grpcCfg := generation.DefaultGrpcLauncherConfig(gen.GRPCAddr)
		l, err := generation.NewGrpcLauncher(grpcCfg, logger)
		if err != nil {
			return nil, func() {}, fmt.Errorf("failed to connect to generation worker: %w", err)
		}
		return l, l.Close, nil
	case gen.HTTPURL != "":
		slog.Info("Using HTTP generation worker", "url", gen.HTTPURL)
		return generation.NewHTTPLauncher(gen.HTTPURL, cfg.WorkerSecret, gen.Timeout), func() {}, nil
	default:
		slog.Info("Course generation disabled (GENERATION_GRPC_ADDR and GENERATION_HTTP_URL not set)")
		return nil, func() {}, nil
	}
}
