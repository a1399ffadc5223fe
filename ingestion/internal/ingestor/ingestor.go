package ingestor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/malbeclabs/dataprep/ingestion/internal/dataset"
	"github.com/malbeclabs/dataprep/ingestion/internal/metrics"
	"github.com/malbeclabs/dataprep/ingestion/internal/split"
)

const (
	opValidateConfig = "validate_config"
	opReadSource     = "read_source"
	opEnsureDirs     = "ensure_output_dirs"
	opWriteRaw       = "write_raw"
	opSplit          = "split"
	opWriteTrain     = "write_train"
	opWriteTest      = "write_test"
	opWriteManifest  = "write_manifest"
	opPublish        = "publish_artifacts"
)

// Ingestor loads the source table, persists a raw copy and a seeded train/test
// split of it. Runs are sequential and unsynchronized; concurrent runs against
// the same output paths race.
type Ingestor struct {
	log *slog.Logger
	cfg Config
}

type Result struct {
	RunID string

	RawDataPath   string
	TrainDataPath string
	TestDataPath  string
	ManifestPath  string

	Columns   []string
	RawRows   int
	TrainRows int
	TestRows  int

	PublishedURLs []string

	StartedAt   time.Time
	CompletedAt time.Time
}

func New(cfg Config) (*Ingestor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, NewError(KindConfig, opValidateConfig, "invalid ingestor configuration", err)
	}
	return &Ingestor{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// Run performs one ingestion and returns the train and test artifact paths.
func (i *Ingestor) Run(ctx context.Context) (trainPath, testPath string, err error) {
	res, err := i.Ingest(ctx)
	if err != nil {
		return "", "", err
	}
	return res.TrainDataPath, res.TestDataPath, nil
}

// Ingest performs one ingestion and reports everything it wrote. Any failure is
// logged once and returned as an *IngestionError; files written before the
// failure are left in place.
func (i *Ingestor) Ingest(ctx context.Context) (*Result, error) {
	startedAt := i.cfg.Clock.Now()
	i.log.Info("Operation started",
		slog.String("operation", "ingest"),
		slog.String("source_path", i.cfg.SourcePath),
		slog.Float64("test_ratio", i.cfg.TestRatio),
		slog.Int64("seed", *i.cfg.Seed))

	res, err := i.ingest(ctx, startedAt)
	metrics.RunDuration.Observe(i.cfg.Clock.Since(startedAt).Seconds())
	if err != nil {
		metrics.RunsTotal.WithLabelValues(metrics.StatusFailure).Inc()
		metrics.ErrorsTotal.WithLabelValues(string(KindOf(err))).Inc()
		i.log.Error("Operation failed", slog.String("operation", "ingest"), slog.Any("error", err))
		return nil, err
	}

	metrics.RunsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
	metrics.LastSuccessTimestamp.Set(float64(res.CompletedAt.Unix()))
	i.log.Info("Operation completed",
		slog.String("operation", "ingest"),
		slog.String("run_id", res.RunID),
		slog.String("train_data_path", res.TrainDataPath),
		slog.String("test_data_path", res.TestDataPath),
		slog.Int("train_rows", res.TrainRows),
		slog.Int("test_rows", res.TestRows))
	return res, nil
}

func (i *Ingestor) ingest(ctx context.Context, startedAt time.Time) (*Result, error) {
	res := &Result{
		RunID:         uuid.NewString(),
		RawDataPath:   i.cfg.RawDataPath,
		TrainDataPath: i.cfg.TrainDataPath,
		TestDataPath:  i.cfg.TestDataPath,
		ManifestPath:  i.cfg.ManifestPath,
		StartedAt:     startedAt,
	}

	ds, err := dataset.ReadFile(i.cfg.SourcePath)
	if err != nil {
		return nil, readError(i.cfg.SourcePath, err)
	}
	res.Columns = ds.Columns()
	res.RawRows = ds.Len()
	metrics.SourceRows.Set(float64(ds.Len()))
	i.log.Info("Read source dataset",
		slog.String("source_path", i.cfg.SourcePath),
		slog.Int("rows", ds.Len()),
		slog.Int("columns", len(ds.Header)))

	// Cancellation is reported as a write_error on ensure_output_dirs wrapping
	// ctx.Err(); callers match it with errors.Is(err, context.Canceled).
	if err := ctx.Err(); err != nil {
		return nil, NewError(KindWrite, opEnsureDirs, "ingestion cancelled before writing artifacts", err)
	}

	for _, dir := range i.outputDirs() {
		if err := ensureDir(dir); err != nil {
			return nil, NewError(KindWrite, opEnsureDirs, "failed to create output directory", err).
				WithContext("dir", dir)
		}
		i.log.Debug("Output directory ready", slog.String("dir", dir))
	}

	if err := i.writeArtifact(opWriteRaw, metrics.ArtifactRaw, i.cfg.RawDataPath, ds); err != nil {
		return nil, err
	}

	i.log.Info("Train test split initiated", slog.Int("rows", ds.Len()))
	trainIdx, testIdx, err := split.TrainTestSplit(ds.Len(), i.cfg.TestRatio, *i.cfg.Seed)
	if err != nil {
		return nil, NewError(KindSplit, opSplit, "failed to split dataset", err).
			WithContext("rows", ds.Len()).
			WithContext("test_ratio", i.cfg.TestRatio)
	}
	train, test := ds.Subset(trainIdx), ds.Subset(testIdx)
	res.TrainRows, res.TestRows = train.Len(), test.Len()

	if err := i.writeArtifact(opWriteTrain, metrics.ArtifactTrain, i.cfg.TrainDataPath, train); err != nil {
		return nil, err
	}
	if err := i.writeArtifact(opWriteTest, metrics.ArtifactTest, i.cfg.TestDataPath, test); err != nil {
		return nil, err
	}

	res.CompletedAt = i.cfg.Clock.Now()

	if i.cfg.ManifestPath != "" {
		if err := i.writeManifest(res); err != nil {
			return nil, err
		}
	}

	if i.cfg.Publisher != nil {
		urls, err := i.cfg.Publisher.Publish(ctx, res.RunID, i.publishPaths())
		if err != nil {
			return nil, NewError(KindPublish, opPublish, "failed to publish artifacts", err).
				WithContext("run_id", res.RunID)
		}
		res.PublishedURLs = urls
		i.log.Info("Published artifacts", slog.String("run_id", res.RunID), slog.Any("urls", urls))
	}

	return res, nil
}

func (i *Ingestor) writeArtifact(operation, artifact, path string, ds *dataset.Dataset) error {
	if err := dataset.WriteFile(path, ds); err != nil {
		return NewError(KindWrite, operation, "failed to write "+artifact+" data", err).
			WithContext("path", path)
	}
	metrics.ArtifactRows.WithLabelValues(artifact).Set(float64(ds.Len()))
	if info, err := os.Stat(path); err == nil {
		metrics.ArtifactBytes.WithLabelValues(artifact).Set(float64(info.Size()))
	}
	i.log.Info("Artifact saved",
		slog.String("artifact", artifact),
		slog.String("path", path),
		slog.Int("rows", ds.Len()))
	return nil
}

func (i *Ingestor) outputDirs() []string {
	var dirs []string
	for _, path := range []string{i.cfg.RawDataPath, i.cfg.TrainDataPath, i.cfg.TestDataPath, i.cfg.ManifestPath} {
		if path == "" {
			continue
		}
		dir := filepath.Dir(path)
		if !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

func (i *Ingestor) publishPaths() []string {
	paths := []string{i.cfg.RawDataPath, i.cfg.TrainDataPath, i.cfg.TestDataPath}
	if i.cfg.ManifestPath != "" {
		paths = append(paths, i.cfg.ManifestPath)
	}
	return paths
}

// ensureDir creates dir and any missing parents. It succeeds if dir already
// exists.
func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
