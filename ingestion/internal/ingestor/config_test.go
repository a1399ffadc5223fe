package ingestor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIngestion_Config_Validate_Defaults(t *testing.T) {
	t.Parallel()

	cfg := Config{Logger: logger}
	require.NoError(t, cfg.Validate())

	require.NotNil(t, cfg.Clock)
	require.Equal(t, DefaultSourcePath, cfg.SourcePath)
	require.Equal(t, DefaultRawDataPath, cfg.RawDataPath)
	require.Equal(t, DefaultTrainDataPath, cfg.TrainDataPath)
	require.Equal(t, DefaultTestDataPath, cfg.TestDataPath)
	require.Equal(t, 0.2, cfg.TestRatio)
	require.NotNil(t, cfg.Seed)
	require.Equal(t, int64(42), *cfg.Seed)
}

func TestIngestion_Config_Validate_KeepsExplicitSeedZero(t *testing.T) {
	t.Parallel()

	seed := int64(0)
	cfg := Config{Logger: logger, Seed: &seed}
	require.NoError(t, cfg.Validate())
	require.Equal(t, int64(0), *cfg.Seed)
}

func TestIngestion_Config_Validate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing logger",
			cfg:     Config{},
			wantErr: "logger is required",
		},
		{
			name:    "ratio too large",
			cfg:     Config{Logger: logger, TestRatio: 1},
			wantErr: "test ratio must be in (0, 1)",
		},
		{
			name:    "negative ratio",
			cfg:     Config{Logger: logger, TestRatio: -0.2},
			wantErr: "test ratio must be in (0, 1)",
		},
		{
			name:    "NaN ratio",
			cfg:     Config{Logger: logger, TestRatio: math.NaN()},
			wantErr: "test ratio must be in (0, 1), got NaN",
		},
		{
			name:    "infinite ratio",
			cfg:     Config{Logger: logger, TestRatio: math.Inf(1)},
			wantErr: "test ratio must be in (0, 1)",
		},
		{
			name:    "train and test share a path",
			cfg:     Config{Logger: logger, TrainDataPath: "out/a.csv", TestDataPath: "out/a.csv"},
			wantErr: "paths must differ",
		},
		{
			name:    "manifest overlaps raw",
			cfg:     Config{Logger: logger, ManifestPath: DefaultRawDataPath},
			wantErr: "paths must differ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIngestion_Config_Validate_CopiesSeed(t *testing.T) {
	t.Parallel()

	seed := int64(7)
	cfg := Config{Logger: logger, Seed: &seed}
	require.NoError(t, cfg.Validate())

	seed = 99
	require.Equal(t, int64(7), *cfg.Seed)
}

func TestIngestion_Config_Validate_DuplicatePathsReportedInWriteOrder(t *testing.T) {
	t.Parallel()

	for range 20 {
		cfg := Config{
			Logger:        logger,
			RawDataPath:   "out/same.csv",
			TrainDataPath: "out/same.csv",
			TestDataPath:  "out/same.csv",
			ManifestPath:  "out/same.csv",
		}
		require.EqualError(t, cfg.Validate(), `raw and train paths must differ, both are "out/same.csv"`)
	}
}
