// Package metrics provides Prometheus instrumentation for the auction engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AuctionsGenerated counts generated auctions, partitioned by venue.
	AuctionsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lockerloot_auctions_generated_total",
		Help: "Total number of auctions generated",
	}, []string{"venue"})

	// AuctionsClosed counts terminal auctions by final status.
	AuctionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lockerloot_auctions_closed_total",
		Help: "Total number of auctions closed",
	}, []string{"status"})

	// AuctionRounds tracks how many rounds auctions run before closing.
	AuctionRounds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lockerloot_auction_rounds",
		Help:    "Rounds elapsed per closed auction",
		Buckets: []float64{1, 2, 4, 6, 8, 10, 12, 16, 20},
	})

	// TacticUses counts player tactic attempts by kind and result.
	TacticUses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lockerloot_tactic_uses_total",
		Help: "Player tactic attempts",
	}, []string{"kind", "result"})

	// LotEventsFired counts lot events applied, by timing.
	LotEventsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lockerloot_lot_events_total",
		Help: "Lot events rolled onto generated auctions",
	}, []string{"timing"})

	// ActiveAuctions tracks the number of live (non-terminal) auctions held
	// in the service registry.
	ActiveAuctions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lockerloot_active_auctions",
		Help: "Number of live auctions in the registry",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lockerloot_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lockerloot_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lockerloot_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; route shapes are fixed and low
		// cardinality apart from IDs.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
