package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/malbeclabs/dataprep/ingestion/internal/config"
	"github.com/malbeclabs/dataprep/ingestion/internal/ingestor"
	"github.com/malbeclabs/dataprep/ingestion/internal/metrics"
	"github.com/malbeclabs/dataprep/ingestion/internal/publisher"
	"github.com/malbeclabs/dataprep/ingestion/internal/split"
)

type RunCmd struct {
	info BuildInfo
}

func NewRunCmd(info BuildInfo) *RunCmd {
	return &RunCmd{info: info}
}

func (c *RunCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest the source dataset and write the raw, train and test artifacts",
		Args:  cobra.NoArgs,
		// Failures are logged where they happen.
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, err := cmd.Root().PersistentFlags().GetBool("verbose")
			if err != nil {
				return fmt.Errorf("failed to get verbose flag: %w", err)
			}
			log := newLogger(cmd.ErrOrStderr(), verbose)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return c.run(ctx, cmd, log)
		},
	}

	cmd.Flags().String("config", "", "Path to a YAML config file")
	cmd.Flags().String("env-file", "", "Path to a .env file (default ./.env if present)")
	cmd.Flags().String("source", ingestor.DefaultSourcePath, "Path to the source CSV file (.gz and .zst are decompressed)")
	cmd.Flags().String("raw-path", ingestor.DefaultRawDataPath, "Path to write the raw copy of the source")
	cmd.Flags().String("train-path", ingestor.DefaultTrainDataPath, "Path to write the train partition")
	cmd.Flags().String("test-path", ingestor.DefaultTestDataPath, "Path to write the test partition")
	cmd.Flags().Float64("test-ratio", split.DefaultTestRatio, "Fraction of rows assigned to the test partition")
	cmd.Flags().Int64("seed", split.DefaultSeed, "Seed of the row shuffle")
	cmd.Flags().String("manifest", "", "Path to write a JSON run manifest")
	cmd.Flags().String("metrics-textfile", "", "Path to write Prometheus metrics in text format after the run")
	cmd.Flags().String("s3-bucket", "", "Publish artifacts to this S3 bucket")
	cmd.Flags().String("s3-region", "", "S3 region")
	cmd.Flags().String("s3-prefix", "", "S3 key prefix")
	cmd.Flags().String("s3-endpoint-url", "", "S3 endpoint URL, for MinIO and other S3 compatible stores")

	return cmd
}

func (c *RunCmd) run(ctx context.Context, cmd *cobra.Command, log *slog.Logger) error {
	flags := cmd.Flags()

	envFile, err := flags.GetString("env-file")
	if err != nil {
		return fmt.Errorf("failed to get env-file flag: %w", err)
	}
	if err := config.LoadDotEnv(envFile); err != nil {
		log.Error("Failed to load env file", "error", err)
		return err
	}

	configPath, err := flags.GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Error("Failed to load config", "error", err, "path", configPath)
		return err
	}
	if err := applyFlags(flags, cfg); err != nil {
		log.Error("Failed to apply flags", "error", err)
		return err
	}
	if err := cfg.Validate(); err != nil {
		log.Error("Invalid configuration", "error", err)
		return err
	}

	metrics.BuildInfo.WithLabelValues(c.info.Version, c.info.Commit, c.info.Date).Set(1)
	if cfg.Metrics.Textfile != "" {
		defer func() {
			if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				log.Error("Failed to write metrics textfile", "error", err, "path", cfg.Metrics.Textfile)
				return
			}
			log.Debug("Wrote metrics textfile", "path", cfg.Metrics.Textfile)
		}()
	}

	var pub ingestor.Publisher
	if cfg.PublishEnabled() {
		p, err := newPublisher(ctx, log, cfg)
		if err != nil {
			log.Error("Failed to create publisher", "error", err)
			return err
		}
		pub = p
	}

	ing, err := ingestor.New(cfg.IngestorConfig(log, pub))
	if err != nil {
		log.Error("Failed to create ingestor", "error", err)
		return err
	}

	res, err := ing.Ingest(ctx)
	if err != nil {
		return err
	}

	printRunSummary(cmd.OutOrStdout(), res)
	return nil
}

func applyFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	for name, dst := range map[string]*string{
		"source":           &cfg.SourcePath,
		"raw-path":         &cfg.Artifacts.RawDataPath,
		"train-path":       &cfg.Artifacts.TrainDataPath,
		"test-path":        &cfg.Artifacts.TestDataPath,
		"manifest":         &cfg.Artifacts.ManifestPath,
		"metrics-textfile": &cfg.Metrics.Textfile,
		"s3-bucket":        &cfg.S3.Bucket,
		"s3-region":        &cfg.S3.Region,
		"s3-prefix":        &cfg.S3.KeyPrefix,
		"s3-endpoint-url":  &cfg.S3.EndpointURL,
	} {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return fmt.Errorf("failed to get %s flag: %w", name, err)
		}
		*dst = v
	}

	if flags.Changed("test-ratio") {
		ratio, err := flags.GetFloat64("test-ratio")
		if err != nil {
			return fmt.Errorf("failed to get test-ratio flag: %w", err)
		}
		cfg.Split.TestRatio = ratio
	}
	if flags.Changed("seed") {
		seed, err := flags.GetInt64("seed")
		if err != nil {
			return fmt.Errorf("failed to get seed flag: %w", err)
		}
		cfg.Split.Seed = &seed
	}
	return nil
}

func newPublisher(ctx context.Context, log *slog.Logger, cfg *config.Config) (*publisher.Publisher, error) {
	region := cfg.S3.Region
	if region == "" {
		// S3 compatible stores accept any region for signing.
		region = "us-east-1"
	}
	client, err := publisher.NewS3Client(ctx, publisher.ClientConfig{
		Region:          region,
		EndpointURL:     cfg.S3.EndpointURL,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}
	return publisher.New(publisher.Config{
		Logger:      log,
		Client:      client,
		Bucket:      cfg.S3.Bucket,
		KeyPrefix:   cfg.S3.KeyPrefix,
		Region:      region,
		EndpointURL: cfg.S3.EndpointURL,
	})
}

func printRunSummary(w io.Writer, res *ingestor.Result) {
	fmt.Fprintln(w, "Train data:", res.TrainDataPath)
	fmt.Fprintln(w, "Test data:", res.TestDataPath)
	fmt.Fprintln(w, "Run ID:", res.RunID)

	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetRowLine(true)
	table.SetHeader([]string{"Artifact", "Path", "Rows"})

	table.Append([]string{metrics.ArtifactRaw, res.RawDataPath, strconv.Itoa(res.RawRows)})
	table.Append([]string{metrics.ArtifactTrain, res.TrainDataPath, strconv.Itoa(res.TrainRows)})
	table.Append([]string{metrics.ArtifactTest, res.TestDataPath, strconv.Itoa(res.TestRows)})
	if res.ManifestPath != "" {
		table.Append([]string{metrics.ArtifactManifest, res.ManifestPath, ""})
	}
	table.Render()

	for _, url := range res.PublishedURLs {
		fmt.Fprintln(w, "Published:", url)
	}
}
