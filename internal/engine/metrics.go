package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine metrics, registered on the default registry and exposed by the
// web layer at /metrics.
var (
	rowsLoaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "griddle_engine_rows_loaded_total",
		Help: "Rows ingested into the master collection.",
	})
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "griddle_engine_commands_total",
		Help: "Commands executed, by verb.",
	}, []string{"verb"})
	unknownCommands = promauto.NewCounter(prometheus.CounterOpts{
		Name: "griddle_engine_unknown_commands_total",
		Help: "Commands with an unrecognized verb handled by the lenient fallback.",
	})
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "griddle_engine_mutations_total",
		Help: "Mutations applied to the dataset, by kind (edit, delete, undo, redo).",
	}, []string{"kind"})
	historyDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "griddle_engine_history_depth",
		Help: "Entries currently held in the undo history.",
	})
	persistDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "griddle_engine_persist_signals_dropped_total",
		Help: "Persist signals dropped because the event buffer was full.",
	})
	requestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "griddle_engine_request_seconds",
		Help:    "Engine request processing time, by request type.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
)
