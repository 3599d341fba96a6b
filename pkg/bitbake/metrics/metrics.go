// Package metrics exposes Prometheus instrumentation for the
// extraction pipeline, grounded in the teacher's
// `pkg/ingestion/metrics.go` per-subsystem-struct-plus-sync.Once
// idiom: one package-level struct, registered exactly once regardless
// of how many Extractors a host constructs, with small exported
// record/observe helpers the pipeline calls directly.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kraklabs/bbstat/pkg/bitbake/diagnostic"
	"github.com/kraklabs/bbstat/pkg/bitbake/pyir"
)

// metricsExtract holds every counter/histogram the extraction pipeline
// reports. Fields are unexported; callers only ever go through the
// package-level Record*/Observe* functions below.
type metricsExtract struct {
	once sync.Once

	recipesExtracted prometheus.Counter
	diagnostics      *prometheus.CounterVec
	tierSelected     *prometheus.CounterVec

	parseDuration      prometheus.Histogram
	extractionDuration prometheus.Histogram
}

var extMetrics metricsExtract

func (m *metricsExtract) init() {
	m.once.Do(func() {
		m.recipesExtracted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bbstat_recipes_extracted_total", Help: "Recipe files run through the Extractor",
		})
		m.diagnostics = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bbstat_diagnostics_total", Help: "Diagnostics emitted, by severity",
		}, []string{"severity"})
		m.tierSelected = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bbstat_python_tier_selected_total", Help: "Python IR execution tier selected for a block or inline expression",
		}, []string{"tier"})

		buckets := []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}
		m.parseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "bbstat_parse_seconds", Help: "Lex+parse duration for one file", Buckets: buckets,
		})
		m.extractionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "bbstat_extraction_seconds", Help: "Full Extract() duration for one recipe", Buckets: buckets,
		})

		prometheus.MustRegister(
			m.recipesExtracted, m.diagnostics, m.tierSelected,
			m.parseDuration, m.extractionDuration,
		)
	})
}

// RecordRecipeExtracted increments the recipes-extracted counter. Call
// once per Extract() call, regardless of outcome.
func RecordRecipeExtracted() {
	extMetrics.init()
	extMetrics.recipesExtracted.Inc()
}

// RecordDiagnostic increments the diagnostics counter for sev.
func RecordDiagnostic(sev diagnostic.Severity) {
	extMetrics.init()
	extMetrics.diagnostics.WithLabelValues(string(sev)).Inc()
}

// RecordTier increments the tier-selection counter for tier.
func RecordTier(tier pyir.Tier) {
	extMetrics.init()
	extMetrics.tierSelected.WithLabelValues(string(tier)).Inc()
}

// ObserveParseDuration records how long lexing+parsing one file took.
func ObserveParseDuration(d time.Duration) {
	extMetrics.init()
	extMetrics.parseDuration.Observe(d.Seconds())
}

// ObserveExtractionDuration records how long a full Extract() call took.
func ObserveExtractionDuration(d time.Duration) {
	extMetrics.init()
	extMetrics.extractionDuration.Observe(d.Seconds())
}
