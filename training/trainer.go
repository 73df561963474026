package training

import (
	"fmt"
	"io"
	"os"
	"time"
)

// BatchResult summarises one forward (and possibly backward) pass
type BatchResult struct {
	Loss    float64 // mean loss over the batch
	Correct int     // correctly classified samples
	Samples int     // batch size
}

// Model is a classifier the Trainer can fit batch by batch
type Model interface {
	// TrainBatch runs forward and backward passes in training mode and
	// applies one optimizer step.
	TrainBatch(sequences [][]int, labels []int) (BatchResult, error)

	// EvaluateBatch runs a forward pass in inference mode and returns the
	// predicted class of each sample.
	EvaluateBatch(sequences [][]int, labels []int) (BatchResult, []int, error)
}

// TrainingConfig holds configuration for training
type TrainingConfig struct {
	Epochs     int
	BatchSize  int
	Shuffle    bool  // reshuffle the training set before every epoch
	Seed       int64 // seeds the shuffle
	NumClasses int
	Verbose    bool      // draw progress bars and epoch summaries
	Output     io.Writer // progress destination, stdout when nil
}

// TrainingMetrics holds metrics for a single epoch
type TrainingMetrics struct {
	Epoch         int
	TrainLoss     float64
	TrainAccuracy float64
	ValidLoss     float64
	ValidAccuracy float64
	ValidMacroF1  float64
	EpochDuration time.Duration
	BatchCount    int
}

// History is the per-epoch record of a Fit call
type History struct {
	Epochs []TrainingMetrics
}

func (h *History) series(get func(TrainingMetrics) float64) []float64 {
	out := make([]float64, len(h.Epochs))
	for i, m := range h.Epochs {
		out[i] = get(m)
	}
	return out
}

// Accuracy returns the training accuracy of each epoch
func (h *History) Accuracy() []float64 {
	return h.series(func(m TrainingMetrics) float64 { return m.TrainAccuracy })
}

// Loss returns the training loss of each epoch
func (h *History) Loss() []float64 {
	return h.series(func(m TrainingMetrics) float64 { return m.TrainLoss })
}

// ValAccuracy returns the validation accuracy of each epoch
func (h *History) ValAccuracy() []float64 {
	return h.series(func(m TrainingMetrics) float64 { return m.ValidAccuracy })
}

// ValMacroF1 returns the validation macro F1 score of each epoch
func (h *History) ValMacroF1() []float64 {
	return h.series(func(m TrainingMetrics) float64 { return m.ValidMacroF1 })
}

// ValLoss returns the validation loss of each epoch
func (h *History) ValLoss() []float64 {
	return h.series(func(m TrainingMetrics) float64 { return m.ValidLoss })
}

// Trainer manages the training process
type Trainer struct {
	model   Model
	config  TrainingConfig
	metrics []TrainingMetrics
}

// NewTrainer creates a new Trainer
func NewTrainer(model Model, config TrainingConfig) *Trainer {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Trainer{
		model:   model,
		config:  config,
		metrics: make([]TrainingMetrics, 0, config.Epochs),
	}
}

// Fit trains for the configured number of epochs. Training metrics are
// sample-weighted averages over the epoch's batches in training mode;
// validation metrics are computed after each epoch in inference mode.
func (t *Trainer) Fit(train, valid Dataset) (*History, error) {
	if t.config.Epochs <= 0 {
		return nil, fmt.Errorf("epochs must be positive, got %d", t.config.Epochs)
	}
	if train.Len() == 0 {
		return nil, fmt.Errorf("empty training set")
	}

	trainLoader := NewDataLoader(train, t.config.BatchSize, t.config.Shuffle, t.config.Seed)
	var validLoader *DataLoader
	validSteps := 0
	if valid != nil && valid.Len() > 0 {
		validLoader = NewDataLoader(valid, t.config.BatchSize, false, 0)
		validSteps = validLoader.Len()
	}

	var session *TrainingSession
	if t.config.Verbose {
		session = NewTrainingSession(t.config.Output, t.config.Epochs, trainLoader.Len(), validSteps)
	}

	for epoch := 0; epoch < t.config.Epochs; epoch++ {
		epochStart := time.Now()
		if session != nil {
			session.StartEpoch(epoch + 1)
		}

		trainLoss, trainAcc, batchCount, err := t.trainEpoch(trainLoader, session)
		if err != nil {
			return nil, fmt.Errorf("training epoch %d failed: %v", epoch+1, err)
		}

		metrics := TrainingMetrics{
			Epoch:         epoch,
			TrainLoss:     trainLoss,
			TrainAccuracy: trainAcc,
			BatchCount:    batchCount,
		}

		if validLoader != nil {
			if session != nil {
				session.StartValidation()
			}
			validLoss, validAcc, cm, err := t.evaluate(validLoader, session)
			if err != nil {
				return nil, fmt.Errorf("validation epoch %d failed: %v", epoch+1, err)
			}
			metrics.ValidLoss = validLoss
			metrics.ValidAccuracy = validAcc
			metrics.ValidMacroF1 = cm.MacroF1()
			if session != nil {
				session.FinishValidationEpoch()
			}
		}

		metrics.EpochDuration = time.Since(epochStart)
		t.metrics = append(t.metrics, metrics)

		if session != nil {
			session.PrintEpochSummary()
		}
	}

	history := &History{Epochs: make([]TrainingMetrics, len(t.metrics))}
	copy(history.Epochs, t.metrics)
	return history, nil
}

// trainEpoch runs one training epoch
func (t *Trainer) trainEpoch(trainLoader *DataLoader, session *TrainingSession) (float64, float64, int, error) {
	var totalLoss float64
	var totalCorrect int
	var totalSamples int
	var batchCount int

	trainLoader.Reset()
	for trainLoader.HasNext() {
		batch, err := trainLoader.Next()
		if err != nil {
			return 0, 0, 0, err
		}

		result, err := t.model.TrainBatch(batch.Sequences, batch.Labels)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("batch %d: %v", batchCount, err)
		}

		totalLoss += result.Loss * float64(result.Samples)
		totalCorrect += result.Correct
		totalSamples += result.Samples
		batchCount++

		if session != nil {
			session.UpdateTrainingProgress(batchCount, totalLoss/float64(totalSamples), float64(totalCorrect)/float64(totalSamples))
		}
	}
	if session != nil {
		session.FinishTrainingEpoch()
	}

	if totalSamples == 0 {
		return 0, 0, batchCount, fmt.Errorf("no samples processed")
	}
	return totalLoss / float64(totalSamples), float64(totalCorrect) / float64(totalSamples), batchCount, nil
}

// evaluate runs the model over every batch of the loader in inference mode
func (t *Trainer) evaluate(loader *DataLoader, session *TrainingSession) (float64, float64, *ConfusionMatrix, error) {
	cm := NewConfusionMatrix(t.config.NumClasses)
	var totalLoss float64
	var totalSamples int
	step := 0

	loader.Reset()
	for loader.HasNext() {
		batch, err := loader.Next()
		if err != nil {
			return 0, 0, nil, err
		}

		result, predictions, err := t.model.EvaluateBatch(batch.Sequences, batch.Labels)
		if err != nil {
			return 0, 0, nil, err
		}
		if err := cm.Update(predictions, batch.Labels); err != nil {
			return 0, 0, nil, err
		}

		totalLoss += result.Loss * float64(result.Samples)
		totalSamples += result.Samples
		step++

		if session != nil {
			session.UpdateValidationProgress(step, totalLoss/float64(totalSamples), cm.Accuracy())
		}
	}

	if totalSamples == 0 {
		return 0, 0, cm, fmt.Errorf("no samples evaluated")
	}
	return totalLoss / float64(totalSamples), cm.Accuracy(), cm, nil
}

// Evaluate runs the model on a dataset and returns loss, accuracy and the
// confusion matrix
func (t *Trainer) Evaluate(ds Dataset) (float64, float64, *ConfusionMatrix, error) {
	return t.evaluate(NewDataLoader(ds, t.config.BatchSize, false, 0), nil)
}
