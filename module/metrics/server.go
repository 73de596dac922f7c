package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/onflow/alpenglow/module/component"
	"github.com/onflow/alpenglow/module/irrecoverable"
)

// Server is the http server that will be serving the /metrics request for prometheus
type Server struct {
	*component.ComponentManager
	server *http.Server
	log    zerolog.Logger
}

// NewServer creates a server listening on addr that responds only to the
// `/metrics` endpoint, serving the metrics of the given gatherer.
func NewServer(log zerolog.Logger, addr string, gatherer prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	endpoint := "/metrics"
	mux.Handle(endpoint, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	m := &Server{
		server: &http.Server{Addr: addr, Handler: mux},
		log:    log.With().Str("component", "metrics_server").Logger(),
	}
	m.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(m.serve).
		Build()
	return m
}

func (m *Server) serve(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	errs := make(chan error, 1)
	go func() {
		errs <- m.server.ListenAndServe()
	}()
	m.log.Info().Str("address", m.server.Addr).Msg("metrics server started")
	ready()

	select {
	case err := <-errs:
		// http.ErrServerClosed is only returned after Shutdown
		if !errors.Is(err, http.ErrServerClosed) {
			ctx.Throw(err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.server.Shutdown(shutdownCtx); err != nil {
			m.log.Err(err).Msg("error shutting down metrics server")
			return
		}
		m.log.Debug().Msg("metrics server shutdown")
	}
}
