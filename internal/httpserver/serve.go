package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/andrebq/cgitauth/internal/logutil"
)

const (
	shutdownGrace = 10 * time.Second
)

// Serve binds to addr and serves handler until ctx is done, then shuts the
// server down letting in-flight requests finish.
func Serve(ctx context.Context, bind string, handler http.Handler) error {
	lst, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}
	return ServeListener(ctx, lst, handler)
}

// ServeListener is like Serve but takes ownership of an existing listener.
func ServeListener(ctx context.Context, lst net.Listener, handler http.Handler) error {
	log := logutil.GetOrDefault(ctx).With().Str("server.addr", lst.Addr().String()).Logger()
	server := http.Server{
		Handler:           handler,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute * 5,
		BaseContext: func(net.Listener) context.Context {
			return logutil.WithLogger(context.Background(), log)
		},
	}
	served := make(chan error, 1)
	go func() {
		log.Info().Msg("Starting HTTP server")
		served <- server.Serve(lst)
	}()
	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("Initiating shutdown process")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	<-served
	if err != nil {
		return err
	}
	log.Info().Msg("Shutdown completed")
	return nil
}
