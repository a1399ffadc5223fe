package ingestor

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lmittmann/tint"
	"github.com/stretchr/testify/require"
)

var (
	logger *slog.Logger
)

func TestMain(m *testing.M) {
	flag.Parse()
	verbose := false
	if vFlag := flag.Lookup("test.v"); vFlag != nil && vFlag.Value.String() == "true" {
		verbose = true
	}
	if verbose {
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.RFC3339,
			AddSource:  true,
		}))
	} else {
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level: slog.LevelWarn,
		}))
	}

	os.Exit(m.Run())
}

type mockPublisher struct {
	PublishFunc func(ctx context.Context, runID string, paths []string) ([]string, error)
}

func (m *mockPublisher) Publish(ctx context.Context, runID string, paths []string) ([]string, error) {
	if m.PublishFunc == nil {
		urls := make([]string, 0, len(paths))
		for _, p := range paths {
			urls = append(urls, "s3://bucket/"+runID+"/"+filepath.Base(p))
		}
		return urls, nil
	}
	return m.PublishFunc(ctx, runID, paths)
}

// writeSource writes a CSV with an id column and n rows to dir and returns its
// path.
func writeSource(t *testing.T, dir string, n int) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("id,gender,math_score\n")
	for i := range n {
		gender := "female"
		if i%2 == 1 {
			gender = "male"
		}
		fmt.Fprintf(&b, "%d,%s,%d\n", i, gender, 40+i%60)
	}

	path := filepath.Join(dir, "source.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}

// testConfig returns a Config with every artifact under dir/artifacts.
func testConfig(dir, source string) Config {
	artifacts := filepath.Join(dir, "artifacts")
	return Config{
		Logger:        logger,
		SourcePath:    source,
		RawDataPath:   filepath.Join(artifacts, "data.csv"),
		TrainDataPath: filepath.Join(artifacts, "train.csv"),
		TestDataPath:  filepath.Join(artifacts, "test.csv"),
	}
}
