package crossval

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func imbalancedLabels() []int {
	// 30 of class 0, 15 of class 1, 5 of class 2
	var labels []int
	for i := 0; i < 50; i++ {
		switch {
		case i%10 < 6:
			labels = append(labels, 0)
		case i%10 < 9:
			labels = append(labels, 1)
		default:
			labels = append(labels, 2)
		}
	}
	return labels
}

func TestStratifiedKFoldPartition(t *testing.T) {
	labels := imbalancedLabels()
	folds, err := StratifiedKFold{K: 5, Shuffle: true, Seed: 7}.Split(labels)
	require.NoError(t, err)
	require.Len(t, folds, 5)

	seen := make(map[int]int)
	for _, f := range folds {
		assert.Len(t, f.Train, len(labels)-len(f.Test))
		assert.True(t, sort.IntsAreSorted(f.Test))
		assert.True(t, sort.IntsAreSorted(f.Train))
		inTest := make(map[int]bool)
		for _, idx := range f.Test {
			seen[idx]++
			inTest[idx] = true
		}
		for _, idx := range f.Train {
			assert.False(t, inTest[idx], "index %d is in both train and test", idx)
		}
	}
	assert.Len(t, seen, len(labels))
	for idx, n := range seen {
		assert.Equal(t, 1, n, "index %d held out %d times", idx, n)
	}
}

func TestStratifiedKFoldProportions(t *testing.T) {
	labels := imbalancedLabels()
	folds, err := StratifiedKFold{K: 5, Shuffle: true, Seed: 1}.Split(labels)
	require.NoError(t, err)

	for _, f := range folds {
		assert.Len(t, f.Test, 10)
		counts := map[int]int{}
		for _, idx := range f.Test {
			counts[labels[idx]]++
		}
		assert.Equal(t, map[int]int{0: 6, 1: 3, 2: 1}, counts)
	}
}

func TestStratifiedKFoldSizesDifferByAtMostOne(t *testing.T) {
	labels := []int{0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2}
	folds, err := StratifiedKFold{K: 3}.Split(labels)
	require.NoError(t, err)

	min, max := len(labels), 0
	for _, f := range folds {
		if len(f.Test) < min {
			min = len(f.Test)
		}
		if len(f.Test) > max {
			max = len(f.Test)
		}
	}
	assert.LessOrEqual(t, max-min, 1)
}

func TestStratifiedKFoldDeterministic(t *testing.T) {
	labels := imbalancedLabels()
	a, err := StratifiedKFold{K: 5, Shuffle: true, Seed: 42}.Split(labels)
	require.NoError(t, err)
	b, err := StratifiedKFold{K: 5, Shuffle: true, Seed: 42}.Split(labels)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := StratifiedKFold{K: 5, Shuffle: true, Seed: 43}.Split(labels)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestStratifiedKFoldWithoutShuffle(t *testing.T) {
	// class 0 is dealt first, then class 1 continues the deal
	folds, err := StratifiedKFold{K: 2}.Split([]int{1, 0, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, Fold{Train: []int{2, 3}, Test: []int{0, 1}}, folds[0])
	assert.Equal(t, Fold{Train: []int{0, 1}, Test: []int{2, 3}}, folds[1])
}

func TestStratifiedKFoldErrors(t *testing.T) {
	_, err := StratifiedKFold{K: 1}.Split([]int{0, 1, 0})
	assert.Error(t, err)

	_, err = StratifiedKFold{K: 4}.Split([]int{0, 1, 0})
	assert.Error(t, err)
}

func TestStratifiedKFoldWarnsOnSmallClass(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	labels := []int{0, 0, 0, 0, 1}
	_, err := StratifiedKFold{K: 2, Logger: zap.New(core)}.Split(labels)
	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, int64(1), logs.All()[0].ContextMap()["class"])
}
