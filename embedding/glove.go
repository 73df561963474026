package embedding

import (
	"math"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
	"github.com/sbwhitecap/tqdm"
	"github.com/sbwhitecap/tqdm/iterators"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Config holds the embedding trainer settings
type Config struct {
	VectorSize   int     // embedding dimensionality
	Window       int     // context words on each side
	MinCount     int     // words occurring fewer times are dropped
	Iterations   int     // passes over the co-occurrence entries
	LearningRate float64 // initial AdaGrad step size
	XMax         float64 // weighting function cutoff
	Alpha        float64 // weighting function exponent
	Seed         int64
	Progress     bool // show a tqdm bar over iterations
}

// DefaultConfig returns the embedding defaults: 100 dimensions, window 5,
// every word kept.
func DefaultConfig() Config {
	return Config{
		VectorSize:   100,
		Window:       5,
		MinCount:     1,
		Iterations:   15,
		LearningRate: 0.05,
		XMax:         100,
		Alpha:        0.75,
		Seed:         1,
	}
}

// Validate checks the configuration ranges
func (c Config) Validate() error {
	switch {
	case c.VectorSize <= 0:
		return errors.Errorf("vector size must be positive, got %d", c.VectorSize)
	case c.Window <= 0:
		return errors.Errorf("window must be positive, got %d", c.Window)
	case c.MinCount < 1:
		return errors.Errorf("min count must be at least 1, got %d", c.MinCount)
	case c.Iterations <= 0:
		return errors.Errorf("iterations must be positive, got %d", c.Iterations)
	case c.LearningRate <= 0:
		return errors.Errorf("learning rate must be positive, got %v", c.LearningRate)
	case c.XMax <= 0:
		return errors.Errorf("x_max must be positive, got %v", c.XMax)
	case c.Alpha <= 0:
		return errors.Errorf("alpha must be positive, got %v", c.Alpha)
	}
	return nil
}

// cooccurrence is one non-zero entry X_ij of the co-occurrence matrix
type cooccurrence struct {
	i, j  int
	count float64
}

// Train builds the vocabulary of sentences and fits GloVe vectors to it.
// Training is single-threaded and fully determined by cfg.Seed. The
// returned weights are the sum of the word and context vectors.
func Train(sentences [][]string, cfg Config) (*Vocabulary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid embedding config")
	}
	vocab, err := NewVocabulary(sentences, cfg.MinCount)
	if err != nil {
		return nil, err
	}

	entries := buildCooccurrences(sentences, vocab, cfg.Window)
	m := newGloveModel(vocab.Size(), cfg)

	run := func(iter int) {
		// linear annealing with a floor of a tenth of the base rate
		lr := cfg.LearningRate * (1 - float64(iter)/float64(cfg.Iterations))
		if lr < cfg.LearningRate*0.1 {
			lr = cfg.LearningRate * 0.1
		}
		m.rng.Shuffle(len(entries), func(a, b int) {
			entries[a], entries[b] = entries[b], entries[a]
		})
		m.epoch(entries, lr)
	}

	if cfg.Progress {
		err = tqdm.With(iterators.Interval(0, cfg.Iterations), "Training embeddings", func(c interface{}) (brk bool) {
			run(c.(int))
			return
		})
		if err != nil {
			return nil, errors.Wrap(err, "embedding training")
		}
	} else {
		for iter := 0; iter < cfg.Iterations; iter++ {
			run(iter)
		}
	}

	weights := mat.NewDense(vocab.Size(), cfg.VectorSize, nil)
	weights.Add(m.w, m.wTilde)
	vocab.weights = weights
	return vocab, nil
}

// buildCooccurrences accumulates symmetric, distance-weighted (1/d)
// co-occurrence counts within each sentence. Entries are sorted so the
// seeded shuffle that follows is reproducible.
func buildCooccurrences(sentences [][]string, vocab *Vocabulary, window int) []cooccurrence {
	counts := make(map[[2]int]float64)
	indices := make([]int, 0, 64)
	for _, sentence := range sentences {
		indices = indices[:0]
		for _, w := range sentence {
			// words below the count threshold have no index
			if idx, ok := vocab.index[w]; ok {
				indices = append(indices, idx)
			}
		}
		for a := range indices {
			left := a - window
			if left < 0 {
				left = 0
			}
			for b := left; b < a; b++ {
				weight := 1.0 / float64(a-b)
				counts[[2]int{indices[a], indices[b]}] += weight
				counts[[2]int{indices[b], indices[a]}] += weight
			}
		}
	}

	entries := make([]cooccurrence, 0, len(counts))
	for key, count := range counts {
		entries = append(entries, cooccurrence{i: key[0], j: key[1], count: count})
	}
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].i != entries[b].i {
			return entries[a].i < entries[b].i
		}
		return entries[a].j < entries[b].j
	})
	return entries
}

// gloveModel holds word and context vectors, biases, and their AdaGrad
// accumulators.
type gloveModel struct {
	cfg           Config
	rng           *rand.Rand
	w, wTilde     *mat.Dense
	b, bTilde     []float64
	gradW, gradWT *mat.Dense
	gradB, gradBT []float64
	scratchW      []float64
	scratchWTilde []float64
}

func newGloveModel(vocabSize int, cfg Config) *gloveModel {
	rng := rand.New(rand.NewSource(cfg.Seed))
	initRange := 0.5 / float64(cfg.VectorSize)
	uniform := func(n int) []float64 {
		data := make([]float64, n)
		for i := range data {
			data[i] = (rng.Float64() - 0.5) * 2 * initRange
		}
		return data
	}
	ones := func(n int) []float64 {
		data := make([]float64, n)
		for i := range data {
			data[i] = 1
		}
		return data
	}

	n := vocabSize * cfg.VectorSize
	return &gloveModel{
		cfg:           cfg,
		rng:           rng,
		w:             mat.NewDense(vocabSize, cfg.VectorSize, uniform(n)),
		wTilde:        mat.NewDense(vocabSize, cfg.VectorSize, uniform(n)),
		b:             uniform(vocabSize),
		bTilde:        uniform(vocabSize),
		gradW:         mat.NewDense(vocabSize, cfg.VectorSize, ones(n)),
		gradWT:        mat.NewDense(vocabSize, cfg.VectorSize, ones(n)),
		gradB:         ones(vocabSize),
		gradBT:        ones(vocabSize),
		scratchW:      make([]float64, cfg.VectorSize),
		scratchWTilde: make([]float64, cfg.VectorSize),
	}
}

// weight is the GloVe weighting function f(x) = min(1, (x/xmax)^alpha)
func (m *gloveModel) weight(x float64) float64 {
	if x < m.cfg.XMax {
		return math.Pow(x/m.cfg.XMax, m.cfg.Alpha)
	}
	return 1
}

// epoch runs one AdaGrad pass over entries and returns the mean cost
func (m *gloveModel) epoch(entries []cooccurrence, lr float64) float64 {
	var cost float64
	for _, e := range entries {
		wi := m.w.RawRowView(e.i)
		wj := m.wTilde.RawRowView(e.j)

		diff := floats.Dot(wi, wj) + m.b[e.i] + m.bTilde[e.j] - math.Log(e.count)
		fdiff := m.weight(e.count) * diff
		cost += 0.5 * fdiff * diff

		copy(m.scratchW, wi)
		copy(m.scratchWTilde, wj)
		gwi := m.gradW.RawRowView(e.i)
		gwj := m.gradWT.RawRowView(e.j)
		for k := range wi {
			gradW := fdiff * m.scratchWTilde[k]
			gradWT := fdiff * m.scratchW[k]
			gwi[k] += gradW * gradW
			wi[k] -= lr * gradW / math.Sqrt(gwi[k])
			gwj[k] += gradWT * gradWT
			wj[k] -= lr * gradWT / math.Sqrt(gwj[k])
		}

		m.gradB[e.i] += fdiff * fdiff
		m.b[e.i] -= lr * fdiff / math.Sqrt(m.gradB[e.i])
		m.gradBT[e.j] += fdiff * fdiff
		m.bTilde[e.j] -= lr * fdiff / math.Sqrt(m.gradBT[e.j])
	}
	if len(entries) == 0 {
		return 0
	}
	return cost / float64(len(entries))
}
