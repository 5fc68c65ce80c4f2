package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	api "github.com/oshokin/catpoint/internal/api/grpc/security"
	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/logger"
)

// Options controls the catpoint-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// StateFile overrides the state file of the file backend.
	StateFile string
	// LogLevel overrides the log level from the configuration file.
	LogLevel string
	// Ready, when set, receives the bound gRPC address once the server accepts calls.
	Ready func(address string)
}

const (
	// metricsPath is where Prometheus metrics are served.
	metricsPath = "/metrics"
	// metricsReadHeaderTimeout bounds slow clients of the metrics endpoint.
	metricsReadHeaderTimeout = 5 * time.Second
	// shutdownTimeout bounds the metrics endpoint shutdown.
	shutdownTimeout = 5 * time.Second
)

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run starts the gRPC server and blocks until context is canceled or server stops.
// Loads configuration first, then determines listen address from config or override.
//
//nolint:funlen // Startup and shutdown read best as one sequence.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "catpoint-server")

	// Load configuration first to get server settings.
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	// Command line log level wins over the configured one.
	if opts.LogLevel != "" {
		settings.LogLevel = opts.LogLevel
	}

	applyLogLevel(ctx, settings.LogLevel)

	// Use StateFile from config unless overridden by command line option.
	if opts.StateFile != "" {
		settings.Storage.StateFile = opts.StateFile
	}

	// Determine listen address: CLI argument overrides config port extraction.
	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	// Build repository, classifier, engine and listeners.
	p, err := newPanel(ctx, settings)
	if err != nil {
		return fmt.Errorf("initialise panel: %w", err)
	}

	defer p.close(ctx)

	if err = p.attachMQTT(ctx, &settings.MQTT); err != nil {
		return fmt.Errorf("attach mqtt: %w", err)
	}

	// Setup TCP listener for gRPC server.
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	// Create and configure gRPC server with the security service.
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(ctx)))
	api.RegisterSecurityServiceServer(grpcServer, api.NewServer(p.engine))

	metricsServer := startMetrics(ctx, settings.Metrics.ListenAddress, p.registry)

	logger.InfoKV(ctx, "Panel server listening",
		"listen_address", lis.Addr().String(),
		"storage", settings.Storage.Backend,
		"classifier", settings.Classifier.Kind,
		"mqtt", settings.MQTT.Enabled())

	if opts.Ready != nil {
		opts.Ready(lis.Addr().String())
	}

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()
		stopMetrics(ctx, metricsServer)
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// applyLogLevel switches the global level when the settings name one.
func applyLogLevel(ctx context.Context, level string) {
	if level == "" {
		return
	}

	parsed, ok := logger.ParseLogLevel(level)
	if !ok {
		logger.WarnKV(ctx, "Ignoring invalid log level", "log_level", level)

		return
	}

	logger.SetLevel(parsed)
}

// startMetrics serves the registry on address in the background.
// It returns nil when address is empty.
func startMetrics(ctx context.Context, address string, registry *prometheus.Registry) *http.Server {
	if address == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	go func() {
		logger.InfoKV(ctx, "Metrics endpoint listening", "listen_address", address, "path", metricsPath)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorKV(ctx, "Metrics endpoint failed", "error", err)
		}
	}()

	return server
}

func stopMetrics(ctx context.Context, server *http.Server) {
	if server == nil {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.ErrorKV(ctx, "Failed to stop metrics endpoint", "error", err)
	}
}

// loggingInterceptor logs every call with its caller, outcome and duration.
// Call contexts inherit the server logger so engine logs carry its name.
func loggingInterceptor(base context.Context) grpc.UnaryServerInterceptor {
	serverLogger := logger.FromContext(base)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = logger.ToContext(ctx, serverLogger)
		started := time.Now()

		response, err := handler(ctx, req)

		kvs := []any{
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(started).String(),
		}

		if actor := api.ActorFromContext(ctx); actor != nil {
			kvs = append(kvs, "hostname", actor.Hostname, "username", actor.Username)
		}

		if err != nil {
			logger.WarnKV(ctx, "RPC failed", append(kvs, "error", err)...)
		} else {
			logger.DebugKV(ctx, "RPC served", kvs...)
		}

		return response, err
	}
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
// Returns appropriate listen address (e.g., ":8080" for port-only binding).
func resolveListenAddress(configAddr, override string) (string, error) {
	// Use override address if provided (e.g., ":9090", "0.0.0.0:8080").
	if override != "" {
		return override, nil
	}

	// Extract port from config address (e.g., "server.example.com:8080" -> ":8080").
	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	// Parse the address to extract port.
	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Return port-only listen address to bind on all interfaces.
	return ":" + port, nil
}
