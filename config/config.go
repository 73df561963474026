// Package config loads and validates the grid-search experiment settings.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/tsawler/rnn-gridsearch/embedding"
	"github.com/tsawler/rnn-gridsearch/grid"
	"github.com/tsawler/rnn-gridsearch/optimizer"
)

// ErrInvalid is returned (wrapped) for any out-of-range setting
var ErrInvalid = errors.New("invalid configuration")

// Data locates the phrase files
type Data struct {
	TrainPath string `yaml:"train_path"`
	TestPath  string `yaml:"test_path"`
}

// Embedding configures the word vector trainer
type Embedding struct {
	VectorSize   int     `yaml:"vector_size"`
	Window       int     `yaml:"window"`
	MinCount     int     `yaml:"min_count"`
	Iterations   int     `yaml:"iterations"`
	LearningRate float64 `yaml:"learning_rate"`
	XMax         float64 `yaml:"x_max"`
	Alpha        float64 `yaml:"alpha"`
	Seed         int64   `yaml:"seed"`
}

// Grid lists the candidate values of every hyperparameter
type Grid struct {
	LayerType        []string  `yaml:"layer_type"`
	NumLayers        []int     `yaml:"num_layers"`
	NumUnits         []int     `yaml:"num_units"`
	Dropout          []float64 `yaml:"dropout"`
	RecurrentDropout []float64 `yaml:"recurrent_dropout"`
	SpatialDropout   []float64 `yaml:"spatial_dropout"`
	Optimizer        []string  `yaml:"optimizer"`
	BatchSize        []int     `yaml:"batch_size"`
}

// Optimizer holds per-optimizer learning rate overrides
type Optimizer struct {
	LearningRate map[string]float64 `yaml:"learning_rate"`
}

// Output locates the reports
type Output struct {
	Dir         string `yaml:"dir"`
	MetricsFile string `yaml:"metrics_file"`
	SummaryPath string `yaml:"summary_path"` // JSON summary, skipped when empty
}

// Config is the full experiment configuration
type Config struct {
	Data                Data      `yaml:"data"`
	Embedding           Embedding `yaml:"embedding"`
	K                   int       `yaml:"k"`
	Epochs              int       `yaml:"epochs"`
	Seed                int64     `yaml:"seed"`
	TrainableEmbeddings bool      `yaml:"trainable_embeddings"`
	Grid                Grid      `yaml:"grid"`
	Optimizer           Optimizer `yaml:"optimizer"`
	Output              Output    `yaml:"output"`
}

// Default returns the baseline settings that a configuration file overrides
func Default() Config {
	emb := embedding.DefaultConfig()
	return Config{
		Data: Data{TrainPath: "train.tsv", TestPath: "test.tsv"},
		Embedding: Embedding{
			VectorSize:   emb.VectorSize,
			Window:       emb.Window,
			MinCount:     emb.MinCount,
			Iterations:   emb.Iterations,
			LearningRate: emb.LearningRate,
			XMax:         emb.XMax,
			Alpha:        emb.Alpha,
			Seed:         emb.Seed,
		},
		K:                   5,
		Epochs:              10,
		Seed:                123,
		TrainableEmbeddings: true,
		Grid: Grid{
			LayerType:        []string{"lstm"},
			NumLayers:        []int{1},
			NumUnits:         []int{128},
			Dropout:          []float64{0.1},
			RecurrentDropout: []float64{0.1},
			SpatialDropout:   []float64{0.1},
			Optimizer:        []string{"adam"},
			BatchSize:        []int{32},
		},
		Output: Output{Dir: ".", MetricsFile: "Metrics.txt"},
	}
}

// Parse decodes YAML onto the defaults. Unknown keys are rejected.
func Parse(buf []byte) (Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(buf, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "decoding configuration")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and validates the configuration at path
func Load(path string) (Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading configuration %s", path)
	}
	cfg, err := Parse(buf)
	if err != nil {
		return Config{}, errors.Wrapf(err, "%s", path)
	}
	return cfg, nil
}

// Validate checks every setting
func (c Config) Validate() error {
	switch {
	case c.Data.TrainPath == "" || c.Data.TestPath == "":
		return errors.Wrap(ErrInvalid, "data.train_path and data.test_path are required")
	case c.K < 2:
		return errors.Wrapf(ErrInvalid, "k must be at least 2, got %d", c.K)
	case c.Epochs < 1:
		return errors.Wrapf(ErrInvalid, "epochs must be positive, got %d", c.Epochs)
	case c.Output.MetricsFile == "":
		return errors.Wrap(ErrInvalid, "output.metrics_file is required")
	}
	if err := c.EmbeddingConfig().Validate(); err != nil {
		return errors.Wrapf(ErrInvalid, "embedding: %v", err)
	}
	if err := c.Space().Validate(); err != nil {
		return errors.Wrapf(ErrInvalid, "grid: %v", err)
	}
	for _, v := range c.Grid.NumLayers {
		if v < 1 {
			return errors.Wrapf(ErrInvalid, "grid.num_layers must be positive, got %d", v)
		}
	}
	for _, v := range c.Grid.NumUnits {
		if v < 1 {
			return errors.Wrapf(ErrInvalid, "grid.num_units must be positive, got %d", v)
		}
	}
	for _, v := range c.Grid.BatchSize {
		if v < 1 {
			return errors.Wrapf(ErrInvalid, "grid.batch_size must be positive, got %d", v)
		}
	}
	rates := [][]float64{c.Grid.Dropout, c.Grid.RecurrentDropout, c.Grid.SpatialDropout}
	for _, dim := range rates {
		for _, v := range dim {
			if v < 0 || v >= 1 {
				return errors.Wrapf(ErrInvalid, "dropout rates must be in [0, 1), got %v", v)
			}
		}
	}
	for name, lr := range c.Optimizer.LearningRate {
		if !optimizer.IsRegistered(name) {
			return errors.Wrapf(ErrInvalid, "optimizer.learning_rate: unknown optimizer %q", name)
		}
		if lr <= 0 {
			return errors.Wrapf(ErrInvalid, "optimizer.learning_rate.%s must be positive, got %v", name, lr)
		}
	}
	return nil
}

// Space returns the hyperparameter grid
func (c Config) Space() grid.Space {
	return grid.Space{
		LayerTypes:       c.Grid.LayerType,
		NumLayers:        c.Grid.NumLayers,
		NumUnits:         c.Grid.NumUnits,
		Dropout:          c.Grid.Dropout,
		RecurrentDropout: c.Grid.RecurrentDropout,
		SpatialDropout:   c.Grid.SpatialDropout,
		Optimizers:       c.Grid.Optimizer,
		BatchSizes:       c.Grid.BatchSize,
	}
}

// EmbeddingConfig returns the embedding trainer settings
func (c Config) EmbeddingConfig() embedding.Config {
	return embedding.Config{
		VectorSize:   c.Embedding.VectorSize,
		Window:       c.Embedding.Window,
		MinCount:     c.Embedding.MinCount,
		Iterations:   c.Embedding.Iterations,
		LearningRate: c.Embedding.LearningRate,
		XMax:         c.Embedding.XMax,
		Alpha:        c.Embedding.Alpha,
		Seed:         c.Embedding.Seed,
	}
}

// LearningRates returns the overrides keyed by canonical optimizer name
func (c Config) LearningRates() map[string]float64 {
	out := make(map[string]float64, len(c.Optimizer.LearningRate))
	for name, lr := range c.Optimizer.LearningRate {
		out[optimizer.Canonical(name)] = lr
	}
	return out
}

// MetricsPath is the Metrics.txt location under the output directory
func (c Config) MetricsPath() string {
	return filepath.Join(c.Output.Dir, c.Output.MetricsFile)
}
