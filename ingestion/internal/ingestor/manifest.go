package ingestor

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/malbeclabs/dataprep/ingestion/internal/metrics"
)

//go:embed manifest.schema.json
var manifestSchemaJSON []byte

var manifestSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	var s jsonschema.Schema
	if err := json.Unmarshal(manifestSchemaJSON, &s); err != nil {
		return nil, fmt.Errorf("failed to parse manifest schema: %w", err)
	}
	return s.Resolve(nil)
})

// Manifest describes one ingestion run and the artifacts it produced.
type Manifest struct {
	RunID       string             `json:"run_id"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
	SourcePath  string             `json:"source_path"`
	TestRatio   float64            `json:"test_ratio"`
	Seed        int64              `json:"seed"`
	Columns     []string           `json:"columns"`
	Artifacts   []ManifestArtifact `json:"artifacts"`
}

type ManifestArtifact struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Rows   int    `json:"rows"`
	Bytes  int64  `json:"bytes"`
	SHA256 string `json:"sha256"`
}

// ValidateManifest checks an encoded manifest against the manifest JSON schema.
func ValidateManifest(data []byte) error {
	rs, err := manifestSchema()
	if err != nil {
		return err
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := rs.Validate(instance); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	return nil
}

func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if err := ValidateManifest(data); err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

func (i *Ingestor) writeManifest(res *Result) error {
	m := Manifest{
		RunID:       res.RunID,
		StartedAt:   res.StartedAt.UTC(),
		CompletedAt: res.CompletedAt.UTC(),
		SourcePath:  i.cfg.SourcePath,
		TestRatio:   i.cfg.TestRatio,
		Seed:        *i.cfg.Seed,
		Columns:     res.Columns,
	}

	for _, a := range []struct {
		name string
		path string
		rows int
	}{
		{metrics.ArtifactRaw, res.RawDataPath, res.RawRows},
		{metrics.ArtifactTrain, res.TrainDataPath, res.TrainRows},
		{metrics.ArtifactTest, res.TestDataPath, res.TestRows},
	} {
		size, sum, err := fileDigest(a.path)
		if err != nil {
			return NewError(KindWrite, opWriteManifest, "failed to digest artifact", err).
				WithContext("path", a.path)
		}
		m.Artifacts = append(m.Artifacts, ManifestArtifact{
			Name:   a.name,
			Path:   a.path,
			Rows:   a.rows,
			Bytes:  size,
			SHA256: sum,
		})
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return NewError(KindWrite, opWriteManifest, "failed to encode manifest", err)
	}
	if err := ValidateManifest(data); err != nil {
		return NewError(KindWrite, opWriteManifest, "encoded manifest does not match schema", err)
	}
	if err := os.WriteFile(i.cfg.ManifestPath, append(data, '\n'), 0644); err != nil {
		return NewError(KindWrite, opWriteManifest, "failed to write manifest", err).
			WithContext("path", i.cfg.ManifestPath)
	}
	metrics.ArtifactBytes.WithLabelValues(metrics.ArtifactManifest).Set(float64(len(data) + 1))
	i.log.Info("Artifact saved",
		slog.String("artifact", metrics.ArtifactManifest),
		slog.String("path", i.cfg.ManifestPath))
	return nil
}

func fileDigest(path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}
