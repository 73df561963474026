// Command gridsearch cross-validates every point of a recurrent sentiment
// classifier hyperparameter grid and reports per-epoch fold statistics.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tsawler/rnn-gridsearch/config"
	"github.com/tsawler/rnn-gridsearch/crossval"
	"github.com/tsawler/rnn-gridsearch/dataset"
	"github.com/tsawler/rnn-gridsearch/embedding"
	"github.com/tsawler/rnn-gridsearch/engine"
	"github.com/tsawler/rnn-gridsearch/grid"
	"github.com/tsawler/rnn-gridsearch/report"
	"github.com/tsawler/rnn-gridsearch/training"
)

type args struct {
	Config  string `arg:"-c,--config" help:"experiment configuration (YAML); defaults are used when empty"`
	DryRun  bool   `arg:"--dry-run" help:"print the grid and model architectures without training"`
	Verbose bool   `arg:"-v" help:"debug logging and per-epoch progress bars"`
}

func (args) Description() string {
	return "Cross-validated hyperparameter grid search for recurrent sentiment classifiers"
}

// newLogger writes JSON logs with RFC3339 timestamps to stderr, keeping
// stdout for the experiment's console output
func newLogger(verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	isErrorLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})
	isInfoLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= level && lvl < zapcore.ErrorLevel
	})

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)
	stderr := zapcore.Lock(os.Stderr)

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, stderr, isErrorLevel),
		zapcore.NewCore(encoder, stderr, isInfoLevel),
	)
	return zap.New(core, zap.AddCaller())
}

func main() {
	var a args
	arg.MustParse(&a)

	logger := newLogger(a.Verbose)
	defer logger.Sync()

	cfg := config.Default()
	if a.Config != "" {
		var err error
		if cfg, err = config.Load(a.Config); err != nil {
			logger.Error("loading configuration", zap.Error(err))
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, a, os.Stdout, logger); err != nil {
		logger.Error("grid search failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, a args, out io.Writer, logger *zap.Logger) error {
	start := time.Now()

	train, err := dataset.Load(cfg.Data.TrainPath, true)
	if err != nil {
		return err
	}
	test, err := dataset.Load(cfg.Data.TestPath, false)
	if err != nil {
		return err
	}
	corpus := dataset.NewCorpus(train, test)
	if err := training.ValidateLabels(corpus.Labels, dataset.NumClasses); err != nil {
		return errors.Wrap(err, "training labels")
	}
	logger.Info("loaded phrases",
		zap.Int("train", len(corpus.Train)),
		zap.Int("test", len(corpus.Test)),
		zap.Ints("class_counts", training.ClassCounts(corpus.Labels, dataset.NumClasses)))

	embCfg := cfg.EmbeddingConfig()
	embCfg.Progress = true
	vocab, err := embedding.Train(corpus.Sentences(), embCfg)
	if err != nil {
		return errors.Wrap(err, "training embeddings")
	}
	vocabSize, dim := vocab.Weights().Dims()
	logger.Info("trained embeddings", zap.Int("vocabulary", vocabSize), zap.Int("dimensions", dim))

	maxLen := corpus.MaxLen()
	encoded, err := dataset.Encode(corpus.Train, corpus.Labels, maxLen, vocab)
	if err != nil {
		return err
	}
	xShape, yShape := encoded.Shapes()
	fmt.Fprintf(out, "X shape: %s\nY shape: %s\n", xShape, yShape)

	points, err := grid.Enumerate(cfg.Space())
	if err != nil {
		return err
	}
	logger.Info("enumerated grid", zap.Int("points", len(points)), zap.Int("folds", cfg.K), zap.Int("epochs", cfg.Epochs))

	factory := &engine.Factory{
		Weights:             vocab.Weights(),
		MaxLen:              maxLen,
		NumClasses:          dataset.NumClasses,
		TrainableEmbeddings: cfg.TrainableEmbeddings,
		LearningRates:       cfg.LearningRates(),
		Summary:             out,
	}
	if a.Verbose {
		factory.Progress = out
	}

	if a.DryRun {
		return printGrid(out, points, factory)
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return errors.Wrapf(err, "creating output directory %s", cfg.Output.Dir)
	}

	driver := &crossval.Driver{
		Splitter: crossval.StratifiedKFold{K: cfg.K, Shuffle: true, Seed: cfg.Seed},
		Epochs:   cfg.Epochs,
		Seed:     cfg.Seed,
		Points:   points,
		Data:     encoded,
		Labels:   encoded.Y,
		Factory: func(p grid.Point, seed int64) (crossval.Model, error) {
			m, err := factory.Build(p, seed)
			if err != nil {
				return nil, err
			}
			logger.Debug("built model", zap.Stringer("point", p), zap.Int64("seed", seed), zap.Int("parameters", m.ParameterCount()))
			return m, nil
		},
		Logger: logger,
		OnResult: func(r crossval.Result) {
			fmt.Fprintln(out, r.Point)
			fmt.Fprintln(out, r.History.ValAccuracy())
		},
	}

	tensor, runErr := driver.Run(ctx)
	if err := finish(cfg, tensor, points, runErr, out, logger); err != nil {
		return err
	}
	logger.Info("grid search finished", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// interrupted reports whether err stems from the run's context being
// cancelled or timing out
func interrupted(err error) bool {
	cause := errors.Cause(err)
	return cause == context.Canceled || cause == context.DeadlineExceeded
}

// finish writes the reports of a driver run. A failed run writes nothing.
// An interrupted run reports the points finished on every fold and still
// returns the interruption.
func finish(cfg config.Config, tensor *crossval.Tensor, points []grid.Point, runErr error, out io.Writer, logger *zap.Logger) error {
	if runErr != nil && (tensor == nil || !interrupted(runErr)) {
		return runErr
	}
	if runErr != nil {
		logger.Warn("interrupted, reporting points finished on every fold", zap.Error(runErr))
	}

	summaries, err := report.Aggregate(tensor, points)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		return runErr
	}
	if err := report.AppendMetricsFile(cfg.MetricsPath(), summaries); err != nil {
		return err
	}
	for _, s := range summaries {
		path, err := report.RenderPlot(cfg.Output.Dir, s)
		if err != nil {
			return err
		}
		logger.Debug("wrote plot", zap.String("path", path))
	}
	if cfg.Output.SummaryPath != "" {
		if err := report.WriteSummaryJSON(cfg.Output.SummaryPath, summaries); err != nil {
			return err
		}
	}

	if err := report.PrintRanking(out, summaries); err != nil {
		return err
	}
	fmt.Fprintln(out)
	if err := report.PrintTable(out, summaries); err != nil {
		return err
	}
	logger.Info("reported grid points", zap.Int("points", len(summaries)), zap.Int("of", len(points)))
	return runErr
}

// printGrid lists every grid point with its compiled architecture
func printGrid(out io.Writer, points []grid.Point, f *engine.Factory) error {
	vocabSize, dim := f.Weights.Dims()
	for _, p := range points {
		spec, err := engine.ModelFromPoint(p, engine.ModelOptions{
			VocabSize:           vocabSize,
			EmbeddingDim:        dim,
			MaxLen:              f.MaxLen,
			NumClasses:          f.NumClasses,
			TrainableEmbeddings: f.TrainableEmbeddings,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "[%d] %s\n", p.Index, p)
		training.NewModelArchitecturePrinter(out, p.LayerType.String()).PrintArchitecture(spec)
	}
	return nil
}
