package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"stockpay/internal/service"
)

type Server struct {
	srv *http.Server
}

func NewServer(addr string, webhooks service.WebhookService, initiator service.PaymentInitiator, log *slog.Logger) *Server {
	mux := http.NewServeMux()
	h := NewHandler(webhooks, initiator, log)
	h.Register(mux)

	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
