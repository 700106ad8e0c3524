// Package metrics exposes Prometheus collectors for conversation turns, tool
// calls and dataset ingestion.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"crm_assistant_backend/platform/apperr"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "assistant"

// Metrics owns its registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	turns          *prometheus.CounterVec
	turnDuration   *prometheus.HistogramVec
	toolCalls      *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec
	ingestions     *prometheus.CounterVec
	ingestedRows   *prometheus.GaugeVec
	ingestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		turns: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Conversation turns completed, by tool label and failure.",
			},
			[]string{"tool", "failed"},
		),
		turnDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "turn_duration_seconds",
				Help:      "Time from message receipt to reply delivery.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 40, 80},
			},
			[]string{"tool"},
		),
		toolCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Tool invocations requested by the model.",
			},
			[]string{"tool", "failed"},
		),
		toolDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_duration_seconds",
				Help:      "Duration of tool invocations.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		ingestions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dataset_ingestions_total",
				Help:      "Dataset load attempts by outcome.",
			},
			[]string{"dataset", "outcome"},
		),
		ingestedRows: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dataset_rows",
				Help:      "Rows in the last successful load of each dataset.",
			},
			[]string{"dataset"},
		),
		ingestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dataset_ingestion_duration_seconds",
				Help:      "Time to fetch and parse one dataset.",
				Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120},
			},
			[]string{"dataset"},
		),
	}
}

// ObserveTurn records one completed conversation turn.
func (m *Metrics) ObserveTurn(tool string, elapsed time.Duration, failed bool) {
	m.turns.WithLabelValues(tool, strconv.FormatBool(failed)).Inc()
	m.turnDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// ObserveTool records one tool invocation.
func (m *Metrics) ObserveTool(tool string, elapsed time.Duration, failed bool) {
	m.toolCalls.WithLabelValues(tool, strconv.FormatBool(failed)).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// ObserveIngestion records one dataset load. Failures are labelled with their
// error kind (unavailable, parse, unknown); empty results as "empty".
func (m *Metrics) ObserveIngestion(dataset string, rows int, elapsed time.Duration, err error) {
	m.ingestDuration.WithLabelValues(dataset).Observe(elapsed.Seconds())
	switch {
	case err != nil:
		m.ingestions.WithLabelValues(dataset, apperr.GetKind(err).String()).Inc()
	case rows == 0:
		m.ingestions.WithLabelValues(dataset, "empty").Inc()
	default:
		m.ingestions.WithLabelValues(dataset, "ok").Inc()
		m.ingestedRows.WithLabelValues(dataset).Set(float64(rows))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
