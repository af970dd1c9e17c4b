package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const readHeaderTimeout = 5 * time.Second

// DiagnosticsServer exposes /healthz, /readyz and, when a metrics handler is
// supplied, /metrics over HTTP while a build runs.
type DiagnosticsServer struct {
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// NewDiagnosticsServer listens on addr and serves the diagnostic endpoints in
// a background goroutine until Close. metrics may be nil.
func NewDiagnosticsServer(
	ctx context.Context, addr string, metrics http.Handler, logger *slog.Logger, checks ...ReadyCheck,
) (*DiagnosticsServer, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", HealthHandler())
	mux.Handle("/readyz", ReadyHandler(checks...))

	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	var lc net.ListenConfig

	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
	done := make(chan struct{})

	go func() {
		defer close(done)

		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Warn("observability: diagnostics server stopped", "error", serveErr)
		}
	}()

	logger.Info("observability: diagnostics server listening", "addr", listener.Addr().String())

	return &DiagnosticsServer{server: srv, listener: listener, done: done}, nil
}

// Addr returns the address the server is listening on.
func (d *DiagnosticsServer) Addr() string {
	return d.listener.Addr().String()
}

// Close shuts the server down and waits for the serve goroutine to exit.
func (d *DiagnosticsServer) Close(ctx context.Context) error {
	err := d.server.Shutdown(ctx)

	<-d.done

	if err != nil {
		return fmt.Errorf("shutdown diagnostics server: %w", err)
	}

	return nil
}
