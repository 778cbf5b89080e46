// Package api exposes the card over HTTP: a JSON snapshot for renderers,
// view toggling, layout recomputation, and Prometheus metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/simonhale/forecastcard/internal/card"
)

type Server struct {
	card    *card.Card
	labeler *card.Labeler
	port    string
}

func NewServer(c *card.Card, labeler *card.Labeler, port string) *Server {
	return &Server{card: c, labeler: labeler, port: port}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/card", s.handleCard)
	mux.HandleFunc("/api/spans", s.handleSpans)
	mux.HandleFunc("/api/toggle", s.handleToggle)
	mux.HandleFunc("/api/layout", s.handleLayout)
	mux.HandleFunc("/api/scroll-index", s.handleScrollIndex)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
