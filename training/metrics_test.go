package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfusionMatrixUpdate(t *testing.T) {
	cm := NewConfusionMatrix(3)
	require.NoError(t, cm.Update([]int{0, 1, 1, 2, 0}, []int{0, 1, 2, 2, 1}))

	assert.Equal(t, 5, cm.TotalSamples)
	assert.Equal(t, 1, cm.Matrix[0][0])
	assert.Equal(t, 1, cm.Matrix[2][1])
	assert.Equal(t, 1, cm.Matrix[1][0])
	assert.InDelta(t, 0.6, cm.Accuracy(), 1e-12)
}

func TestConfusionMatrixMacroF1(t *testing.T) {
	cm := NewConfusionMatrix(2)
	// true 0: 3 right, 1 wrong; true 1: 2 right, 0 wrong
	require.NoError(t, cm.Update([]int{0, 0, 0, 1, 1, 1}, []int{0, 0, 0, 0, 1, 1}))

	precision := (1.0 + 2.0/3.0) / 2
	recall := (0.75 + 1.0) / 2
	assert.InDelta(t, 2*precision*recall/(precision+recall), cm.MacroF1(), 1e-12)
	assert.InDelta(t, 5.0/6.0, cm.Accuracy(), 1e-12)
}

func TestConfusionMatrixMacroF1SkipsAbsentClasses(t *testing.T) {
	cm := NewConfusionMatrix(5)
	require.NoError(t, cm.Update([]int{1, 1, 3}, []int{1, 1, 3}))
	assert.InDelta(t, 1.0, cm.MacroF1(), 1e-12)
}

func TestConfusionMatrixEmpty(t *testing.T) {
	cm := NewConfusionMatrix(2)
	assert.Equal(t, 0.0, cm.Accuracy())
	assert.Equal(t, 0.0, cm.MacroF1())
}

func TestConfusionMatrixRejectsBadInput(t *testing.T) {
	cm := NewConfusionMatrix(2)
	assert.Error(t, cm.Update([]int{0, 1}, []int{0}))
	assert.Error(t, cm.Update([]int{2}, []int{0}))
	assert.Error(t, cm.Update([]int{0}, []int{-1}))
	assert.Equal(t, 0, cm.TotalSamples)
}
