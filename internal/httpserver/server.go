package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// Run serves h on ln until ctx is cancelled, then shuts down gracefully and
// runs closers in order. No write timeout is set: relay responses are
// long-lived event streams.
func Run(ctx context.Context, ln net.Listener, h http.Handler, logger *zap.Logger, closers ...func() error) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", ln.Addr().String()))
		errc <- srv.Serve(ln)
	}()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err = srv.Shutdown(sctx)
		cancel()
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}

	for _, c := range closers {
		err = multierr.Append(err, c())
	}
	return err
}

// ListenAndRun is Run on a fresh TCP listener bound to addr.
func ListenAndRun(ctx context.Context, addr string, h http.Handler, logger *zap.Logger, closers ...func() error) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return Run(ctx, ln, h, logger, closers...)
}
