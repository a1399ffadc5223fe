package ingestor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/dataprep/ingestion/internal/split"
)

const (
	DefaultSourcePath    = "notebook/data/StudentsPerformance.csv"
	DefaultRawDataPath   = "artifacts/data.csv"
	DefaultTrainDataPath = "artifacts/train.csv"
	DefaultTestDataPath  = "artifacts/test.csv"
)

// Publisher copies finished artifacts to durable storage and returns one
// location per path.
type Publisher interface {
	Publish(ctx context.Context, runID string, paths []string) ([]string, error)
}

type Config struct {
	Logger *slog.Logger

	SourcePath    string
	RawDataPath   string
	TrainDataPath string
	TestDataPath  string

	// Split parameters; zero TestRatio and nil Seed select the defaults.
	TestRatio float64
	Seed      *int64

	// Optional configuration.
	Clock        clockwork.Clock
	ManifestPath string
	Publisher    Publisher
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}

	if c.SourcePath == "" {
		c.SourcePath = DefaultSourcePath
	}
	if c.RawDataPath == "" {
		c.RawDataPath = DefaultRawDataPath
	}
	if c.TrainDataPath == "" {
		c.TrainDataPath = DefaultTrainDataPath
	}
	if c.TestDataPath == "" {
		c.TestDataPath = DefaultTestDataPath
	}

	if c.TestRatio == 0 {
		c.TestRatio = split.DefaultTestRatio
	}
	if !(c.TestRatio > 0 && c.TestRatio < 1) {
		return fmt.Errorf("test ratio must be in (0, 1), got %g", c.TestRatio)
	}
	// The seed is copied so the caller cannot change it after validation.
	seed := split.DefaultSeed
	if c.Seed != nil {
		seed = *c.Seed
	}
	c.Seed = &seed

	seen := make(map[string]string)
	for _, a := range c.artifactPaths() {
		abs, err := filepath.Abs(a.path)
		if err != nil {
			return fmt.Errorf("invalid %s path %q: %w", a.name, a.path, err)
		}
		if other, ok := seen[abs]; ok {
			return fmt.Errorf("%s and %s paths must differ, both are %q", other, a.name, a.path)
		}
		seen[abs] = a.name
	}

	return nil
}

type artifactPath struct {
	name string
	path string
}

// artifactPaths lists the output paths in write order.
func (c *Config) artifactPaths() []artifactPath {
	paths := []artifactPath{
		{"raw", c.RawDataPath},
		{"train", c.TrainDataPath},
		{"test", c.TestDataPath},
	}
	if c.ManifestPath != "" {
		paths = append(paths, artifactPath{"manifest", c.ManifestPath})
	}
	return paths
}
