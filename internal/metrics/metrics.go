// Package metrics holds the Prometheus collectors of the engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// validationsTotal counts validation runs by formula type and result
	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gonomen_validations_total",
		Help: "Total formula validations by formula type and result",
	}, []string{"formula", "result"})

	// validationDuration tracks validation latency
	validationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gonomen_validation_duration_seconds",
		Help:    "Formula validation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
	}, []string{"formula"})

	// evolutionGenerationsTotal counts completed generations
	evolutionGenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gonomen_evolution_generations_total",
		Help: "Total evolved generations by formula type",
	}, []string{"formula"})

	// evolutionBestFitness reports the best fitness of the latest generation
	evolutionBestFitness = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gonomen_evolution_best_fitness",
		Help: "Best fitness of the most recent generation by formula type",
	}, []string{"formula"})

	// evolutionRunsTotal counts finished runs by stop reason
	evolutionRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gonomen_evolution_runs_total",
		Help: "Total finished evolution runs by formula type and stop reason",
	}, []string{"formula", "stop_reason"})

	// cipherAnalysesTotal counts encryption profile analyses by band
	cipherAnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gonomen_cipher_analyses_total",
		Help: "Total encryption profile analyses by formula type and band",
	}, []string{"formula", "band"})

	// stegoOperationsTotal counts steganography operations
	stegoOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gonomen_stego_operations_total",
		Help: "Total steganography operations by operation, method and outcome",
	}, []string{"operation", "method", "outcome"})
)

// ObserveValidation records one validation run.
func ObserveValidation(formula string, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	validationsTotal.WithLabelValues(formula, result).Inc()
	validationDuration.WithLabelValues(formula).Observe(time.Since(started).Seconds())
}

// ObserveGeneration records one completed generation.
func ObserveGeneration(formula string, bestFitness float64) {
	evolutionGenerationsTotal.WithLabelValues(formula).Inc()
	evolutionBestFitness.WithLabelValues(formula).Set(bestFitness)
}

// ObserveEvolution records a finished run.
func ObserveEvolution(formula, stopReason string) {
	evolutionRunsTotal.WithLabelValues(formula, stopReason).Inc()
}

// ObserveCipher records an encryption profile analysis.
func ObserveCipher(formula, band string) {
	cipherAnalysesTotal.WithLabelValues(formula, band).Inc()
}

// ObserveStego records a steganography operation.
func ObserveStego(operation, method, outcome string) {
	stegoOperationsTotal.WithLabelValues(operation, method, outcome).Inc()
}
