package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

// GenerateCourseMethod is the full RPC name served by the generation worker.
// Payloads are google.protobuf.Struct in both directions.
const GenerateCourseMethod = "/classmate.generation.v1.CourseGenerator/GenerateCourse"

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
	errRejected                 = errors.New("generation worker rejected job")
)

// GrpcLauncherConfig holds configuration for the gRPC launcher.
type GrpcLauncherConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultGrpcLauncherConfig returns default configuration for addr.
func DefaultGrpcLauncherConfig(addr string) GrpcLauncherConfig {
	return GrpcLauncherConfig{
		Address:          addr,
		ConnectTimeout:   5 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// GrpcLauncher launches jobs over gRPC.
type GrpcLauncher struct {
	conn   grpc.ClientConnInterface
	closer func() error
	logger *slog.Logger
}

// NewGrpcLauncher dials the generation worker and waits until the
// connection is ready so a bad address fails at startup.
func NewGrpcLauncher(cfg GrpcLauncherConfig, logger *slog.Logger) (*GrpcLauncher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("generation worker address is empty")
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}

	// Build client connection (no network I/O yet).
	conn, err := grpc.NewClient(cfg.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to generation worker at %s: %w", cfg.Address, err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("generation worker at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to generation worker", "address", cfg.Address)
	return &GrpcLauncher{conn: conn, closer: conn.Close, logger: logger}, nil
}

// NewGrpcLauncherWithConn wraps an existing connection.
func NewGrpcLauncherWithConn(conn grpc.ClientConnInterface, logger *slog.Logger) *GrpcLauncher {
	if logger == nil {
		logger = slog.Default()
	}
	return &GrpcLauncher{conn: conn, logger: logger}
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Launch sends the job to the worker. The worker acknowledges with
// {"accepted": true} or {"accepted": false, "error": "..."}.
func (l *GrpcLauncher) Launch(ctx context.Context, job Job) error {
	req, err := structpb.NewStruct(map[string]any{
		"job_id":       job.ID,
		"account_id":   float64(job.AccountID),
		"phone_number": job.Address,
		"preferences":  job.Preferences,
	})
	if err != nil {
		return fmt.Errorf("build generate request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := l.conn.Invoke(ctx, GenerateCourseMethod, req, resp); err != nil {
		return fmt.Errorf("generate course rpc: %w", err)
	}

	fields := resp.GetFields()
	if accepted, ok := fields["accepted"]; ok && !accepted.GetBoolValue() {
		if msg := fields["error"].GetStringValue(); msg != "" {
			return fmt.Errorf("%w: %s", errRejected, msg)
		}
		return errRejected
	}
	return nil
}

// Close closes the gRPC connection.
func (l *GrpcLauncher) Close() {
	if l.closer == nil {
		return
	}
	if err := l.closer(); err != nil {
		l.logger.Warn("failed to close gRPC connection", "error", err)
	}
}
