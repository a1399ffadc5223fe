package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"

	ArtifactRaw      = "raw"
	ArtifactTrain    = "train"
	ArtifactTest     = "test"
	ArtifactManifest = "manifest"
)

var (
	// Build information metric
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dataprep_ingestor_build_info",
		Help: "Build information of the dataprep ingestor",
	}, []string{"version", "commit", "date"})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dataprep_ingestor_runs_total",
		Help: "Total number of ingestion runs by outcome",
	}, []string{"status"})

	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dataprep_ingestor_errors_total",
		Help: "Total number of failed ingestion runs by error kind",
	}, []string{"error_type"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dataprep_ingestor_run_duration_seconds",
		Help:    "Duration of ingestion runs",
		Buckets: prometheus.DefBuckets,
	})

	LastSuccessTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dataprep_ingestor_last_success_timestamp_seconds",
		Help: "Unix time of the last successful ingestion run",
	})

	SourceRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dataprep_ingestor_source_rows",
		Help: "Number of data rows read from the source file in the last run",
	})

	ArtifactRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dataprep_ingestor_artifact_rows",
		Help: "Number of data rows written per artifact in the last run",
	}, []string{"artifact"})

	ArtifactBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dataprep_ingestor_artifact_bytes",
		Help: "Size in bytes of each artifact written in the last run",
	}, []string{"artifact"})

	// Object storage publishing
	PublishAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dataprep_ingestor_publish_attempts_total",
		Help: "Total number of object upload attempts by outcome",
	}, []string{"status"})
)

// WriteTextfile writes every registered metric to path in the text exposition
// format, for collection by the node exporter textfile collector.
func WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
