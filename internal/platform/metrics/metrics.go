// Package metrics exposes operational Prometheus counters for the capture,
// replay, scheduler, and hotkey components over a loopback-only listener.
// This is ambient observability, not a presentation surface, so it is
// carried even though spec.md's core table has no GUI/metrics row.
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters/gauges this daemon reports.
type Metrics struct {
	registry *prometheus.Registry

	CapturesStarted   prometheus.Counter
	CapturesCompleted prometheus.Counter
	ActionsCaptured   prometheus.Counter
	ActionsExcluded   prometheus.Counter

	ReplaysStarted   prometheus.Counter
	ReplaysCompleted *prometheus.CounterVec // labeled by outcome: ok|failed|cancelled
	ActionsReplayed  prometheus.Counter
	ActionRetries    prometheus.Counter

	ScheduleDispatches  prometheus.Counter
	ScheduleInFlight    *prometheus.GaugeVec // labeled by schedule_id
	ScheduleTimeouts    prometheus.Counter

	HotkeyInvocations prometheus.Counter

	server *http.Server
}

// New builds and registers the metric collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		CapturesStarted:   prometheus.NewCounter(prometheus.CounterOpts{Name: "deskflow_captures_started_total"}),
		CapturesCompleted: prometheus.NewCounter(prometheus.CounterOpts{Name: "deskflow_captures_completed_total"}),
		ActionsCaptured:   prometheus.NewCounter(prometheus.CounterOpts{Name: "deskflow_actions_captured_total"}),
		ActionsExcluded:   prometheus.NewCounter(prometheus.CounterOpts{Name: "deskflow_actions_excluded_total"}),
		ReplaysStarted:    prometheus.NewCounter(prometheus.CounterOpts{Name: "deskflow_replays_started_total"}),
		ReplaysCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "deskflow_replays_completed_total"}, []string{"outcome"}),
		ActionsReplayed: prometheus.NewCounter(prometheus.CounterOpts{Name: "deskflow_actions_replayed_total"}),
		ActionRetries:   prometheus.NewCounter(prometheus.CounterOpts{Name: "deskflow_action_retries_total"}),
		ScheduleDispatches: prometheus.NewCounter(prometheus.CounterOpts{Name: "deskflow_schedule_dispatches_total"}),
		ScheduleInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "deskflow_schedule_in_flight"}, []string{"schedule_id"}),
		ScheduleTimeouts: prometheus.NewCounter(prometheus.CounterOpts{Name: "deskflow_schedule_timeouts_total"}),
		HotkeyInvocations: prometheus.NewCounter(prometheus.CounterOpts{Name: "deskflow_hotkey_invocations_total"}),
	}

	reg.MustRegister(
		m.CapturesStarted, m.CapturesCompleted, m.ActionsCaptured, m.ActionsExcluded,
		m.ReplaysStarted, m.ReplaysCompleted, m.ActionsReplayed, m.ActionRetries,
		m.ScheduleDispatches, m.ScheduleInFlight, m.ScheduleTimeouts,
		m.HotkeyInvocations,
	)
	return m
}

// Serve starts the loopback metrics listener. It returns once Shutdown is
// called or the listener fails.
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	m.server = &http.Server{Addr: addr, Handler: mux}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return m.server.Serve(ln)
}

// Shutdown gracefully stops the metrics listener.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return m.server.Shutdown(shutdownCtx)
}
