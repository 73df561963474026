package training

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ProbabilityEpsilon clips probabilities away from 0 and 1 before the log,
// as Keras does for categorical cross-entropy.
const ProbabilityEpsilon = 1e-7

// Softmax applies a numerically stable row-wise softmax to logits
func Softmax(logits mat.Matrix) *mat.Dense {
	r, c := logits.Dims()
	probs := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		max := math.Inf(-1)
		for j := 0; j < c; j++ {
			if v := logits.At(i, j); v > max {
				max = v
			}
		}
		var sum float64
		row := probs.RawRowView(i)
		for j := range row {
			row[j] = math.Exp(logits.At(i, j) - max)
			sum += row[j]
		}
		for j := range row {
			row[j] /= sum
		}
	}
	return probs
}

// CrossEntropyResult holds the batch loss and the gradient with respect to
// the softmax input.
type CrossEntropyResult struct {
	Loss    float64    // mean negative log-likelihood over the batch
	Grad    *mat.Dense // (probs - onehot) / batch
	Correct int        // samples whose argmax matches the label
}

// CategoricalCrossEntropy computes the mean cross-entropy of softmax
// probabilities against class labels, and its gradient with respect to the
// logits that produced probs.
func CategoricalCrossEntropy(probs *mat.Dense, labels []int) (CrossEntropyResult, error) {
	r, c := probs.Dims()
	if len(labels) != r {
		return CrossEntropyResult{}, fmt.Errorf("batch size mismatch: %d predictions, %d labels", r, len(labels))
	}
	target, err := OneHot(labels, c)
	if err != nil {
		return CrossEntropyResult{}, err
	}

	var loss float64
	for i, l := range labels {
		p := probs.At(i, l)
		p = math.Max(ProbabilityEpsilon, math.Min(1-ProbabilityEpsilon, p))
		loss -= math.Log(p)
	}

	grad := mat.NewDense(r, c, nil)
	grad.Sub(probs, target)
	grad.Scale(1/float64(r), grad)

	correct := 0
	for i, pred := range Argmax(probs) {
		if pred == labels[i] {
			correct++
		}
	}

	return CrossEntropyResult{
		Loss:    loss / float64(r),
		Grad:    grad,
		Correct: correct,
	}, nil
}
