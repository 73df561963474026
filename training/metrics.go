package training

import (
	"fmt"
)

// ConfusionMatrix counts predictions per (true class, predicted class)
type ConfusionMatrix struct {
	NumClasses   int
	Matrix       [][]int // [true][predicted]
	TotalSamples int
}

// NewConfusionMatrix creates an empty numClasses × numClasses matrix
func NewConfusionMatrix(numClasses int) *ConfusionMatrix {
	matrix := make([][]int, numClasses)
	for i := range matrix {
		matrix[i] = make([]int, numClasses)
	}
	return &ConfusionMatrix{NumClasses: numClasses, Matrix: matrix}
}

// Update adds predicted classes against their true labels
func (cm *ConfusionMatrix) Update(predictions, trueLabels []int) error {
	if len(predictions) != len(trueLabels) {
		return fmt.Errorf("labels length mismatch: %d predictions, %d labels", len(predictions), len(trueLabels))
	}
	for i, pred := range predictions {
		truth := trueLabels[i]
		if truth < 0 || truth >= cm.NumClasses || pred < 0 || pred >= cm.NumClasses {
			return fmt.Errorf("sample %d: class out of range (true %d, predicted %d)", i, truth, pred)
		}
		cm.Matrix[truth][pred]++
		cm.TotalSamples++
	}
	return nil
}

// Accuracy is the fraction of samples on the diagonal
func (cm *ConfusionMatrix) Accuracy() float64 {
	if cm.TotalSamples == 0 {
		return 0
	}
	correct := 0
	for c := 0; c < cm.NumClasses; c++ {
		correct += cm.Matrix[c][c]
	}
	return float64(correct) / float64(cm.TotalSamples)
}

// MacroF1 is the harmonic mean of macro precision and macro recall. Classes
// never predicted are left out of precision, classes never seen out of
// recall.
func (cm *ConfusionMatrix) MacroF1() float64 {
	var precision, recall float64
	var predicted, seen int
	for c := 0; c < cm.NumClasses; c++ {
		tp := cm.Matrix[c][c]
		column, row := 0, 0
		for o := 0; o < cm.NumClasses; o++ {
			column += cm.Matrix[o][c]
			row += cm.Matrix[c][o]
		}
		if column > 0 {
			precision += float64(tp) / float64(column)
			predicted++
		}
		if row > 0 {
			recall += float64(tp) / float64(row)
			seen++
		}
	}
	if predicted == 0 || seen == 0 {
		return 0
	}
	precision /= float64(predicted)
	recall /= float64(seen)
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}
