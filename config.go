package plant_gan

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Config Knobs of training run
type Config struct {
	// Dataset identifier (path to sqlite database)
	DBName string
	// Train on every sample (training + validation) instead of training split only
	LoadAll bool

	NumClasses int
	ImageSize  int
	NoiseSize  int

	GeneratorLearningRate     float64
	DiscriminatorLearningRate float64
	// Generator is updated every Tau epochs
	Tau int
	// Learning rates are multiplied by DecayRate every DecayEpochs
	DecayEpochs int
	DecayRate   float64

	MaxEpochs     int
	DisplayEpochs int
	SaveEpochs    int
	SummaryEpochs int
	BatchSize     int
	// Dropout keep probability for discriminator training step
	KeepProb float64

	// Create output folder, write checkpoints and summaries
	Saving bool
	// Restore parameters from checkpoint file before training
	Restore string
	// Parent directory of output folder. Empty means working directory
	OutputDir string
	// Parent directory of summary folder. Empty means os.TempDir()
	SummaryDir string

	LabelSource LabelSource
	// Validation set is evaluated in chunks of this size
	ValidationBatch int
	Seed            int64
}

// DefaultConfig Returns defaults of plant seedlings setup: 12 classes of 32x32 images
func DefaultConfig() Config {
	return Config{
		DBName:                    "plants.sqlite3",
		NumClasses:                12,
		ImageSize:                 32,
		NoiseSize:                 32,
		GeneratorLearningRate:     1e-3,
		DiscriminatorLearningRate: 1e-3,
		Tau:                       10,
		DecayEpochs:               10000,
		DecayRate:                 1.0,
		MaxEpochs:                 60000,
		DisplayEpochs:             50,
		SaveEpochs:                1000,
		SummaryEpochs:             10,
		BatchSize:                 64,
		KeepProb:                  0.8,
		LabelSource:               LabelsBatch,
		ValidationBatch:           128,
		Seed:                      1337,
	}
}

// Validate verifies the config is runnable
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.NumClasses <= 0 {
		return fmt.Errorf("num_classes must be > 0 (got %d)", c.NumClasses)
	}
	if c.ImageSize <= 0 || c.ImageSize%4 != 0 {
		return fmt.Errorf("image_size must be positive and divisible by 4 (got %d)", c.ImageSize)
	}
	if c.NoiseSize <= 0 {
		return fmt.Errorf("noise_size must be > 0 (got %d)", c.NoiseSize)
	}
	if c.GeneratorLearningRate <= 0 || c.DiscriminatorLearningRate <= 0 {
		return fmt.Errorf("learning rates must be > 0 (got %g and %g)", c.GeneratorLearningRate, c.DiscriminatorLearningRate)
	}
	if c.Tau <= 0 {
		return fmt.Errorf("tau must be > 0 (got %d)", c.Tau)
	}
	if c.MaxEpochs < 0 {
		return fmt.Errorf("max_epoches must be >= 0 (got %d)", c.MaxEpochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.KeepProb <= 0 || c.KeepProb > 1 {
		return fmt.Errorf("keep_prob must be in (0; 1] (got %g)", c.KeepProb)
	}
	if c.DecayRate <= 0 {
		return fmt.Errorf("decay_rate must be > 0 (got %g)", c.DecayRate)
	}
	if c.DisplayEpochs <= 0 {
		c.DisplayEpochs = 50
	}
	if c.SaveEpochs <= 0 {
		c.SaveEpochs = 1000
	}
	if c.SummaryEpochs <= 0 {
		c.SummaryEpochs = 10
	}
	if c.DecayEpochs <= 0 {
		c.DecayEpochs = 10000
	}
	if c.ValidationBatch <= 0 {
		c.ValidationBatch = 128
	}
	return nil
}

// Descriptor Short name of run used for output folder: file name of dataset without extension
func (c *Config) Descriptor() string {
	base := filepath.Base(c.DBName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "plants"
	}
	return base
}
