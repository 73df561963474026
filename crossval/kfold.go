package crossval

import (
	"math/rand"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Fold is one train/held-out partition of sample indices. Both slices are
// sorted ascending.
type Fold struct {
	Train []int
	Test  []int
}

// StratifiedKFold splits samples into K folds that preserve class
// proportions
type StratifiedKFold struct {
	K       int
	Shuffle bool
	Seed    int64
	Logger  *zap.Logger
}

// Split assigns every index to exactly one held-out set. Each class's
// indices are shuffled (when Shuffle is set) and dealt round-robin to the
// folds, with the deal continuing across classes so fold sizes differ by at
// most one.
func (s StratifiedKFold) Split(labels []int) ([]Fold, error) {
	n := len(labels)
	if s.K < 2 {
		return nil, errors.Errorf("k-fold needs at least 2 splits, got %d", s.K)
	}
	if s.K > n {
		return nil, errors.Errorf("cannot split %d samples into %d folds", n, s.K)
	}
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	byClass := make(map[int][]int)
	for i, l := range labels {
		byClass[l] = append(byClass[l], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewSource(s.Seed))
	tests := make([][]int, s.K)
	deal := 0
	for _, c := range classes {
		members := byClass[c]
		if len(members) < s.K {
			logger.Warn("least populated class has fewer members than folds",
				zap.Int("class", c), zap.Int("members", len(members)), zap.Int("folds", s.K))
		}
		if s.Shuffle {
			rng.Shuffle(len(members), func(i, j int) {
				members[i], members[j] = members[j], members[i]
			})
		}
		for _, idx := range members {
			tests[deal%s.K] = append(tests[deal%s.K], idx)
			deal++
		}
	}

	folds := make([]Fold, s.K)
	for f, test := range tests {
		sort.Ints(test)
		held := make([]bool, n)
		for _, idx := range test {
			held[idx] = true
		}
		train := make([]int, 0, n-len(test))
		for i := 0; i < n; i++ {
			if !held[i] {
				train = append(train, i)
			}
		}
		folds[f] = Fold{Train: train, Test: test}
	}
	return folds, nil
}
