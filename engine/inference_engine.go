package engine

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/tsawler/rnn-gridsearch/training"
)

// Predict returns the class probabilities of each sequence, computed in
// inference mode (no dropout)
func (mte *ModelTrainingEngine) Predict(sequences [][]int) (*mat.Dense, error) {
	logits, err := mte.forward(sequences, false)
	if err != nil {
		return nil, fmt.Errorf("inference execution failed: %v", err)
	}
	return training.Softmax(logits), nil
}

// EvaluateBatch computes loss and predictions of one batch in inference mode
func (mte *ModelTrainingEngine) EvaluateBatch(sequences [][]int, labels []int) (training.BatchResult, []int, error) {
	probs, err := mte.Predict(sequences)
	if err != nil {
		return training.BatchResult{}, nil, err
	}
	res, err := training.CategoricalCrossEntropy(probs, labels)
	if err != nil {
		return training.BatchResult{}, nil, err
	}
	return training.BatchResult{Loss: res.Loss, Correct: res.Correct, Samples: len(labels)}, training.Argmax(probs), nil
}

// Evaluate returns loss and accuracy over a whole dataset
func (mte *ModelTrainingEngine) Evaluate(ds training.Dataset, batchSize int) (float64, float64, error) {
	trainer := training.NewTrainer(mte, training.TrainingConfig{
		Epochs:     1,
		BatchSize:  batchSize,
		NumClasses: mte.numClasses,
	})
	loss, acc, _, err := trainer.Evaluate(ds)
	return loss, acc, err
}
