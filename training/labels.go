package training

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ValidateLabels checks every label is a class index in [0, numClasses)
func ValidateLabels(labels []int, numClasses int) error {
	if numClasses < 2 {
		return fmt.Errorf("need at least 2 classes, got %d", numClasses)
	}
	for i, l := range labels {
		if l < 0 || l >= numClasses {
			return fmt.Errorf("label %d at position %d outside [0, %d)", l, i, numClasses)
		}
	}
	return nil
}

// OneHot encodes class labels as a len(labels) x numClasses matrix
func OneHot(labels []int, numClasses int) (*mat.Dense, error) {
	if err := ValidateLabels(labels, numClasses); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels to encode")
	}
	m := mat.NewDense(len(labels), numClasses, nil)
	for i, l := range labels {
		m.Set(i, l, 1)
	}
	return m, nil
}

// Argmax returns the index of the largest value in each row. Ties go to the
// lowest index.
func Argmax(m mat.Matrix) []int {
	r, c := m.Dims()
	out := make([]int, r)
	for i := 0; i < r; i++ {
		best := 0
		for j := 1; j < c; j++ {
			if m.At(i, j) > m.At(i, best) {
				best = j
			}
		}
		out[i] = best
	}
	return out
}

// ClassCounts returns how many labels fall in each class
func ClassCounts(labels []int, numClasses int) []int {
	counts := make([]int, numClasses)
	for _, l := range labels {
		if l >= 0 && l < numClasses {
			counts[l]++
		}
	}
	return counts
}
