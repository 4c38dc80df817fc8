package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Upload outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeParseError = "parse_error"
	OutcomeNoRecords  = "no_records"
	OutcomeError      = "error"
)

var (
	uploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthexport",
		Subsystem: "ingest",
		Name:      "uploads_total",
		Help:      "Export uploads by outcome.",
	}, []string{"outcome"})
	parseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "healthexport",
		Subsystem: "ingest",
		Name:      "parse_duration_seconds",
		Help:      "Time spent streaming and classifying one export.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})
	recordsParsed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthexport",
		Subsystem: "ingest",
		Name:      "records_total",
		Help:      "Classified records by metric.",
	}, []string{"metric"})
	documentsWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthexport",
		Subsystem: "persistence",
		Name:      "documents_total",
		Help:      "Chunk documents written by result.",
	}, []string{"result"})
	datasetLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "healthexport",
		Subsystem: "persistence",
		Name:      "dataset_loads_total",
		Help:      "Dataset reads by source (cache, store, none).",
	}, []string{"source"})
)

func init() {
	prometheus.MustRegister(uploadsTotal, parseDuration, recordsParsed, documentsWritten, datasetLoads)
}

// RecordUpload counts one upload attempt.
func RecordUpload(outcome string) {
	uploadsTotal.WithLabelValues(outcome).Inc()
}

// ObserveParse records how long a parse took.
func ObserveParse(d time.Duration) {
	parseDuration.Observe(d.Seconds())
}

// RecordParsed adds n classified records of metric.
func RecordParsed(metric string, n int) {
	if n <= 0 {
		return
	}
	recordsParsed.WithLabelValues(metric).Add(float64(n))
}

// RecordDocuments counts inserted and failed documents of one bulk write.
func RecordDocuments(inserted, failed int) {
	if inserted > 0 {
		documentsWritten.WithLabelValues("inserted").Add(float64(inserted))
	}
	if failed > 0 {
		documentsWritten.WithLabelValues("failed").Add(float64(failed))
	}
}

// RecordLoad counts a dataset read served from source.
func RecordLoad(source string) {
	datasetLoads.WithLabelValues(source).Inc()
}
