package publisher

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cenkalti/backoff/v5"

	"github.com/malbeclabs/dataprep/ingestion/internal/metrics"
)

const (
	defaultMaxTries        = 5
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 10 * time.Second
	defaultMaxElapsedTime  = 2 * time.Minute
)

type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Config struct {
	Logger *slog.Logger
	Client S3Client
	Bucket string

	// Optional configuration.
	KeyPrefix       string
	Region          string
	EndpointURL     string
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Client == nil {
		return errors.New("s3 client is required")
	}
	if c.Bucket == "" {
		return errors.New("bucket is required")
	}

	if c.MaxTries == 0 {
		c.MaxTries = defaultMaxTries
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = defaultInitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = defaultMaxInterval
	}
	if c.MaxElapsedTime <= 0 {
		c.MaxElapsedTime = defaultMaxElapsedTime
	}
	c.KeyPrefix = strings.Trim(c.KeyPrefix, "/")
	return nil
}

// Publisher uploads ingestion artifacts to an S3 compatible bucket under
// <prefix>/<run id>/<file name>.
type Publisher struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	return &Publisher{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// Publish uploads each file in order and returns their object URLs. It stops
// at the first file that cannot be uploaded; URLs of files already uploaded are
// returned alongside the error.
func (p *Publisher) Publish(ctx context.Context, runID string, paths []string) ([]string, error) {
	urls := make([]string, 0, len(paths))
	for _, filePath := range paths {
		key := p.ObjectKey(runID, filePath)
		if err := p.upload(ctx, key, filePath); err != nil {
			return urls, fmt.Errorf("failed to publish %s: %w", filePath, err)
		}
		urls = append(urls, p.ObjectURL(key))
	}
	return urls, nil
}

func (p *Publisher) ObjectKey(runID, filePath string) string {
	return path.Join(p.cfg.KeyPrefix, runID, filepath.Base(filePath))
}

func (p *Publisher) ObjectURL(key string) string {
	if p.cfg.EndpointURL != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(p.cfg.EndpointURL, "/"), p.cfg.Bucket, key)
	}
	if p.cfg.Region != "" {
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.cfg.Bucket, p.cfg.Region, key)
	}
	return fmt.Sprintf("s3://%s/%s", p.cfg.Bucket, key)
}

func (p *Publisher) upload(ctx context.Context, key, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	contentMD5 := computeMD5(data)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialInterval
	b.MaxInterval = p.cfg.MaxInterval

	_, err = backoff.Retry(ctx, func() (*s3.PutObjectOutput, error) {
		out, err := p.cfg.Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(p.cfg.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentMD5:  aws.String(contentMD5),
			ContentType: aws.String(contentType(filePath)),
		})
		if err != nil {
			metrics.PublishAttemptsTotal.WithLabelValues(metrics.StatusFailure).Inc()
			return nil, err
		}
		metrics.PublishAttemptsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
		return out, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(p.cfg.MaxTries),
		backoff.WithMaxElapsedTime(p.cfg.MaxElapsedTime),
		backoff.WithNotify(func(err error, next time.Duration) {
			p.log.Warn("S3 upload failed, retrying",
				slog.String("key", key),
				slog.Duration("next_attempt_in", next),
				slog.String("error", err.Error()))
		}),
	)
	if err != nil {
		return fmt.Errorf("S3 upload failed after retries: %w", err)
	}

	p.log.Info("Uploaded artifact",
		slog.String("bucket", p.cfg.Bucket),
		slog.String("key", key),
		slog.Int("bytes", len(data)))
	return nil
}

func computeMD5(data []byte) string {
	hash := md5.Sum(data)
	return base64.StdEncoding.EncodeToString(hash[:])
}

func contentType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
