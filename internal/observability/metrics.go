package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects run and tool metrics.
//
// Usage:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.TurnFinished("completed")
type Metrics struct {
	// TurnCounter counts finished turns.
	// Labels: outcome (completed|failed|cancelled|busy)
	TurnCounter *prometheus.CounterVec

	// StreamEventCounter counts events consumed from the remote run stream.
	// Labels: event
	StreamEventCounter *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// ActiveRuns tracks runs currently streaming.
	ActiveRuns prometheus.Gauge
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TurnCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidekick_turns_total",
				Help: "Total number of chat turns by outcome",
			},
			[]string{"outcome"},
		),
		StreamEventCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidekick_stream_events_total",
				Help: "Total number of remote run stream events by type",
			},
			[]string{"event"},
		),
		ToolExecutionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidekick_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sidekick_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		ActiveRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sidekick_active_runs",
				Help: "Number of runs currently in flight",
			},
		),
	}
}

// TurnFinished records the outcome of a turn.
func (m *Metrics) TurnFinished(outcome string) {
	if m == nil {
		return
	}
	m.TurnCounter.WithLabelValues(outcome).Inc()
}

// StreamEvent records one consumed stream event.
func (m *Metrics) StreamEvent(event string) {
	if m == nil {
		return
	}
	m.StreamEventCounter.WithLabelValues(event).Inc()
}

// ToolExecuted records one tool invocation.
func (m *Metrics) ToolExecuted(tool string, success bool, seconds float64) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.ToolExecutionCounter.WithLabelValues(tool, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(tool).Observe(seconds)
}

// RunStarted increments the in-flight gauge; the returned func decrements it.
func (m *Metrics) RunStarted() func() {
	if m == nil {
		return func() {}
	}
	m.ActiveRuns.Inc()
	return m.ActiveRuns.Dec
}
