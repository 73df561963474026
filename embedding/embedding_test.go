package embedding

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func corpus() [][]string {
	lines := []string{
		"the movie was good",
		"the movie was bad",
		"a good film",
		"a bad film",
		"the plot was good and the acting was good",
		"rare",
	}
	out := make([][]string, len(lines))
	for i, l := range lines {
		out[i] = strings.Split(l, " ")
	}
	return out
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.VectorSize = 8
	cfg.Iterations = 5
	cfg.Seed = 42
	return cfg
}

func TestVocabularyOrdering(t *testing.T) {
	v, err := NewVocabulary(corpus(), 1)
	require.NoError(t, err)

	// "the" and "was" and "good" all occur 4 times; first appearance wins
	assert.Equal(t, []string{"the", "was", "good"}, v.Words()[:3])
	assert.Equal(t, 4, v.Count("good"))
	assert.Equal(t, 1, v.Count("rare"))

	for i, w := range v.Words() {
		idx, err := v.Index(w)
		require.NoError(t, err)
		assert.Equal(t, i, idx)
		back, err := v.Word(i)
		require.NoError(t, err)
		assert.Equal(t, w, back)
	}
	assert.Equal(t, 0, v.Dim())
}

func TestVocabularyMinCount(t *testing.T) {
	v, err := NewVocabulary(corpus(), 2)
	require.NoError(t, err)

	_, err = v.Index("rare")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownWord))
	assert.Contains(t, err.Error(), `"rare"`)
	assert.Equal(t, 0, v.Count("rare"))

	_, err = v.Word(v.Size())
	assert.Error(t, err)
}

func TestVocabularyErrors(t *testing.T) {
	_, err := NewVocabulary(nil, 1)
	assert.Error(t, err)

	_, err = NewVocabulary(corpus(), 100)
	assert.Error(t, err)
}

func TestTrainShapes(t *testing.T) {
	v, err := Train(corpus(), smallConfig())
	require.NoError(t, err)

	r, c := v.Weights().Dims()
	assert.Equal(t, v.Size(), r)
	assert.Equal(t, 8, c)
	assert.Equal(t, 8, v.Dim())

	vec, err := v.Vector("film")
	require.NoError(t, err)
	idx, _ := v.Index("film")
	assert.Equal(t, mat.Row(nil, idx, v.Weights()), vec)
}

func TestTrainDeterministic(t *testing.T) {
	a, err := Train(corpus(), smallConfig())
	require.NoError(t, err)
	b, err := Train(corpus(), smallConfig())
	require.NoError(t, err)
	assert.True(t, mat.Equal(a.Weights(), b.Weights()))

	cfg := smallConfig()
	cfg.Seed = 7
	c, err := Train(corpus(), cfg)
	require.NoError(t, err)
	assert.False(t, mat.Equal(a.Weights(), c.Weights()))
}

func TestTrainInvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.VectorSize = 0
	_, err := Train(corpus(), cfg)
	assert.Error(t, err)

	cfg = smallConfig()
	cfg.Window = -1
	assert.Error(t, cfg.Validate())
}

func TestCooccurrences(t *testing.T) {
	sentences := [][]string{{"a", "b", "c"}}
	v, err := NewVocabulary(sentences, 1)
	require.NoError(t, err)

	entries := buildCooccurrences(sentences, v, 2)
	got := make(map[[2]int]float64)
	for _, e := range entries {
		got[[2]int{e.i, e.j}] = e.count
	}
	a, _ := v.Index("a")
	b, _ := v.Index("b")
	c, _ := v.Index("c")
	assert.Equal(t, 1.0, got[[2]int{a, b}])
	assert.Equal(t, 1.0, got[[2]int{b, a}])
	assert.Equal(t, 0.5, got[[2]int{a, c}])
	assert.Equal(t, 0.5, got[[2]int{c, a}])
	assert.Len(t, entries, 6)

	// window 1 drops the distance-2 pair
	assert.Len(t, buildCooccurrences(sentences, v, 1), 4)
}

func TestEpochReducesCost(t *testing.T) {
	sentences := corpus()
	cfg := smallConfig()
	v, err := NewVocabulary(sentences, 1)
	require.NoError(t, err)

	entries := buildCooccurrences(sentences, v, cfg.Window)
	m := newGloveModel(v.Size(), cfg)
	first := m.epoch(entries, cfg.LearningRate)
	var last float64
	for i := 0; i < 50; i++ {
		last = m.epoch(entries, cfg.LearningRate)
	}
	assert.Less(t, last, first)
}

func TestWeightingFunction(t *testing.T) {
	m := newGloveModel(1, DefaultConfig())
	assert.Equal(t, 1.0, m.weight(100))
	assert.Equal(t, 1.0, m.weight(500))
	assert.InDelta(t, 0.177827941, m.weight(10), 1e-6)
}
