package engine

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/tsawler/rnn-gridsearch/training"
)

// forward runs the network up to the dense logits
func (mte *ModelTrainingEngine) forward(sequences [][]int, isTraining bool) (*mat.Dense, error) {
	if err := mte.checkBatch(sequences); err != nil {
		return nil, err
	}
	x, err := mte.embedding.lookup(sequences)
	if err != nil {
		return nil, err
	}
	for _, l := range mte.stack {
		x = l.forward(x, isTraining)
	}
	return x[len(x)-1], nil
}

// backward propagates dLoss/dLogits through every layer, accumulating
// parameter gradients
func (mte *ModelTrainingEngine) backward(dLogits *mat.Dense) {
	d := sequence{dLogits}
	for i := len(mte.stack) - 1; i >= 0; i-- {
		d = mte.stack[i].backward(d)
	}
	mte.embedding.backward(d)
}

func (mte *ModelTrainingEngine) checkBatch(sequences [][]int) error {
	if len(sequences) == 0 {
		return fmt.Errorf("empty batch")
	}
	for i, seq := range sequences {
		if len(seq) != mte.steps {
			return fmt.Errorf("sequence %d has %d steps, model expects %d", i, len(seq), mte.steps)
		}
	}
	return nil
}

func (mte *ModelTrainingEngine) zeroGradients() {
	for _, p := range mte.parameters {
		p.grad.Zero()
	}
}

// ExecuteStep computes the loss and gradients of one batch in training
// mode without updating the weights. It returns the loss and the number of
// correct predictions.
func (mte *ModelTrainingEngine) ExecuteStep(sequences [][]int, labels []int) (training.CrossEntropyResult, error) {
	if len(labels) != len(sequences) {
		return training.CrossEntropyResult{}, fmt.Errorf("batch has %d sequences but %d labels", len(sequences), len(labels))
	}
	mte.zeroGradients()
	logits, err := mte.forward(sequences, true)
	if err != nil {
		return training.CrossEntropyResult{}, err
	}
	res, err := training.CategoricalCrossEntropy(training.Softmax(logits), labels)
	if err != nil {
		return training.CrossEntropyResult{}, err
	}
	mte.backward(res.Grad)
	return res, nil
}

// TrainBatch runs one forward/backward pass in training mode and applies
// one optimizer step
func (mte *ModelTrainingEngine) TrainBatch(sequences [][]int, labels []int) (training.BatchResult, error) {
	res, err := mte.ExecuteStep(sequences, labels)
	if err != nil {
		return training.BatchResult{}, err
	}
	if err := mte.optimizer.Step(mte.trainable); err != nil {
		return training.BatchResult{}, fmt.Errorf("optimizer step failed: %v", err)
	}
	return training.BatchResult{Loss: res.Loss, Correct: res.Correct, Samples: len(labels)}, nil
}

// Fit trains the network for epochs passes over train, evaluating on valid
// after every epoch. Batches are reshuffled each epoch.
func (mte *ModelTrainingEngine) Fit(train, valid training.Dataset, epochs, batchSize int) (*training.History, error) {
	trainer := training.NewTrainer(mte, training.TrainingConfig{
		Epochs:     epochs,
		BatchSize:  batchSize,
		Shuffle:    true,
		Seed:       mte.seed,
		NumClasses: mte.numClasses,
		Verbose:    mte.progress != nil,
		Output:     mte.progress,
	})
	return trainer.Fit(train, valid)
}
