package workers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

type httpServer struct {
	server *http.Server
}

func NewHTTPServer(addr string, handler http.Handler) (*httpServer, error) {
	return &httpServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *httpServer) Name() string { return "http_server" }

func (s *httpServer) Start(ctx context.Context) error {
	slog.Info("Starting worker", "name", s.Name(), "addr", s.server.Addr)
	defer slog.Info("Worker stopped", "name", s.Name())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancelFn := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelFn()
		return s.server.Shutdown(shutdownCtx)
	}
}
