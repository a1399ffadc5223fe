package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/malbeclabs/dataprep/ingestion/internal/ingestor"
	"github.com/malbeclabs/dataprep/ingestion/internal/split"
)

const EnvPrefix = "DATAPREP_INGESTOR_"

// Config is the file and environment configuration of the ingestor CLI.
// Precedence: flags > environment > config file > defaults.
type Config struct {
	SourcePath string          `yaml:"source_path"`
	Artifacts  ArtifactsConfig `yaml:"artifacts"`
	Split      SplitConfig     `yaml:"split"`
	Metrics    MetricsConfig   `yaml:"metrics"`
	S3         S3Config        `yaml:"s3"`
}

type ArtifactsConfig struct {
	RawDataPath   string `yaml:"raw_data_path"`
	TrainDataPath string `yaml:"train_data_path"`
	TestDataPath  string `yaml:"test_data_path"`
	ManifestPath  string `yaml:"manifest_path"`
}

type SplitConfig struct {
	TestRatio float64 `yaml:"test_ratio"`
	Seed      *int64  `yaml:"seed,omitempty"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	KeyPrefix       string `yaml:"key_prefix"`
	EndpointURL     string `yaml:"endpoint_url"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	seed := split.DefaultSeed
	return &Config{
		SourcePath: ingestor.DefaultSourcePath,
		Artifacts: ArtifactsConfig{
			RawDataPath:   ingestor.DefaultRawDataPath,
			TrainDataPath: ingestor.DefaultTrainDataPath,
			TestDataPath:  ingestor.DefaultTestDataPath,
		},
		Split: SplitConfig{
			TestRatio: split.DefaultTestRatio,
			Seed:      &seed,
		},
	}
}

// Load reads the YAML file at configPath, if set, over the defaults and then
// applies environment overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from a .env file into the process environment
// without overriding variables that are already set. An empty path loads
// ./.env if it exists.
func LoadDotEnv(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	for name, dst := range map[string]*string{
		"SOURCE_PATH":          &c.SourcePath,
		"RAW_DATA_PATH":        &c.Artifacts.RawDataPath,
		"TRAIN_DATA_PATH":      &c.Artifacts.TrainDataPath,
		"TEST_DATA_PATH":       &c.Artifacts.TestDataPath,
		"MANIFEST_PATH":        &c.Artifacts.ManifestPath,
		"METRICS_TEXTFILE":     &c.Metrics.Textfile,
		"S3_BUCKET":            &c.S3.Bucket,
		"S3_REGION":            &c.S3.Region,
		"S3_PREFIX":            &c.S3.KeyPrefix,
		"S3_ENDPOINT_URL":      &c.S3.EndpointURL,
		"S3_ACCESS_KEY_ID":     &c.S3.AccessKeyID,
		"S3_SECRET_ACCESS_KEY": &c.S3.SecretAccessKey,
	} {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv(EnvPrefix + "TEST_RATIO"); v != "" {
		ratio, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %sTEST_RATIO=%q: %w", EnvPrefix, v, err)
		}
		c.Split.TestRatio = ratio
	}
	if v := os.Getenv(EnvPrefix + "SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %sSEED=%q: %w", EnvPrefix, v, err)
		}
		c.Split.Seed = &seed
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.SourcePath == "" {
		return fmt.Errorf("source path cannot be empty")
	}
	if c.Artifacts.RawDataPath == "" || c.Artifacts.TrainDataPath == "" || c.Artifacts.TestDataPath == "" {
		return fmt.Errorf("raw, train and test data paths cannot be empty")
	}
	if !(c.Split.TestRatio > 0 && c.Split.TestRatio < 1) {
		return fmt.Errorf("invalid test ratio: %g. Must be in (0, 1)", c.Split.TestRatio)
	}
	if c.Split.Seed == nil {
		return fmt.Errorf("seed cannot be empty")
	}
	if c.S3.Bucket != "" && c.S3.Region == "" && c.S3.EndpointURL == "" {
		return fmt.Errorf("S3 region cannot be empty when publishing to AWS")
	}
	if (c.S3.AccessKeyID == "") != (c.S3.SecretAccessKey == "") {
		return fmt.Errorf("S3 access key id and secret access key must be set together")
	}
	return nil
}

// PublishEnabled reports whether artifacts should be uploaded after a run.
func (c *Config) PublishEnabled() bool {
	return c.S3.Bucket != ""
}

// IngestorConfig converts c into the ingestor's runtime configuration. pub may
// be nil.
func (c *Config) IngestorConfig(log *slog.Logger, pub ingestor.Publisher) ingestor.Config {
	seed := *c.Split.Seed
	cfg := ingestor.Config{
		Logger:        log,
		SourcePath:    c.SourcePath,
		RawDataPath:   c.Artifacts.RawDataPath,
		TrainDataPath: c.Artifacts.TrainDataPath,
		TestDataPath:  c.Artifacts.TestDataPath,
		ManifestPath:  c.Artifacts.ManifestPath,
		TestRatio:     c.Split.TestRatio,
		Seed:          &seed,
	}
	if pub != nil {
		cfg.Publisher = pub
	}
	return cfg
}
