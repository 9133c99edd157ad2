// Package metrics exposes docq queue and storage metrics to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	logpkg "github.com/rzbill/docq/pkg/log"
)

// QueueMetrics holds the per-queue collectors. It satisfies the adapter
// observer surface.
type QueueMetrics struct {
	SendTotal         *prometheus.CounterVec
	ReceiveTotal      *prometheus.CounterVec
	ClaimTotal        *prometheus.CounterVec
	AdmissionRejected *prometheus.CounterVec
	ReanchorTotal     *prometheus.CounterVec
	HeartbeatTotal    *prometheus.CounterVec
	DeleteTotal       *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewQueueMetrics creates the collectors and registers them on reg. A nil
// reg gets a private registry.
func NewQueueMetrics(reg *prometheus.Registry) *QueueMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &QueueMetrics{
		SendTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docq_send_total",
				Help: "Messages stored by send",
			},
			[]string{"queue"},
		),
		ReceiveTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docq_receive_total",
				Help: "Messages delivered to consumers",
			},
			[]string{"queue", "mode"},
		),
		ClaimTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docq_claim_total",
				Help: "Claim attempts by outcome (won or lost)",
			},
			[]string{"queue", "outcome"},
		),
		AdmissionRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docq_admission_rejected_total",
				Help: "Sends refused because a bounded queue had too few handled documents",
			},
			[]string{"queue"},
		),
		ReanchorTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docq_reanchor_total",
				Help: "Tail cursor re-anchors in blocking receives",
			},
			[]string{"queue"},
		),
		HeartbeatTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docq_heartbeat_total",
				Help: "Empty batches yielded by blocking receives",
			},
			[]string{"queue"},
		),
		DeleteTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docq_delete_total",
				Help: "Messages removed by confirmed delete",
			},
			[]string{"queue"},
		),
		registry: reg,
	}
	reg.MustRegister(
		m.SendTotal,
		m.ReceiveTotal,
		m.ClaimTotal,
		m.AdmissionRejected,
		m.ReanchorTotal,
		m.HeartbeatTotal,
		m.DeleteTotal,
	)
	return m
}

func (m *QueueMetrics) Sent(queue string) { m.SendTotal.WithLabelValues(queue).Inc() }

func (m *QueueMetrics) Received(queue, mode string, n int) {
	if n > 0 {
		m.ReceiveTotal.WithLabelValues(queue, mode).Add(float64(n))
	}
}

func (m *QueueMetrics) Claimed(queue string, won bool) {
	outcome := "lost"
	if won {
		outcome = "won"
	}
	m.ClaimTotal.WithLabelValues(queue, outcome).Inc()
}

func (m *QueueMetrics) Rejected(queue string) {
	m.AdmissionRejected.WithLabelValues(queue).Inc()
}

func (m *QueueMetrics) Reanchored(queue string) { m.ReanchorTotal.WithLabelValues(queue).Inc() }
func (m *QueueMetrics) Heartbeat(queue string)  { m.HeartbeatTotal.WithLabelValues(queue).Inc() }
func (m *QueueMetrics) Deleted(queue string)    { m.DeleteTotal.WithLabelValues(queue).Inc() }

// Registry returns the registry the collectors live on.
func (m *QueueMetrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *QueueMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes Handler on addr under /metrics until ctx is done.
func (m *QueueMetrics) Serve(ctx context.Context, addr string, logger logpkg.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", logpkg.Str("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
