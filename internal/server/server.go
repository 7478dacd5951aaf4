package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/insightql/insightql/internal/config"
	"github.com/insightql/insightql/internal/warehouse"
	"github.com/rs/zerolog/log"
)

type Server struct {
	cfg  *config.Config
	http *http.Server
	wh   warehouse.Runner // held for graceful close
}

func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	s := &Server{cfg: cfg}

	router, wh, err := s.setupRoutes(ctx)
	if err != nil {
		return nil, fmt.Errorf("setup routes: %w", err)
	}
	s.wh = wh

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("graceful shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := s.http.Shutdown(shutdownCtx)

		// Close the warehouse connection on shutdown
		if s.wh != nil {
			if closeErr := s.wh.Close(); closeErr != nil {
				log.Warn().Err(closeErr).Msg("error closing warehouse")
			} else {
				log.Info().Str("warehouse", s.wh.Name()).Msg("warehouse closed")
			}
		}

		return err
	case err := <-errCh:
		return err
	}
}
