// Package embedding builds the word vocabulary and trains co-occurrence
// (GloVe) word vectors for it.
package embedding

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrUnknownWord is returned when a word has no vocabulary index, either
// because it never occurred or because it fell below the count threshold.
var ErrUnknownWord = errors.New("word not in vocabulary")

// Vocabulary is a bijection between retained words and indices 0..V-1,
// ordered by descending corpus frequency, with one embedding row per word.
type Vocabulary struct {
	index   map[string]int
	words   []string
	counts  []int
	weights *mat.Dense
}

type wordCount struct {
	word  string
	count int
	first int // position of first occurrence, breaks count ties
}

// NewVocabulary counts the words of sentences and keeps those occurring at
// least minCount times. The vocabulary has no weights until trained.
func NewVocabulary(sentences [][]string, minCount int) (*Vocabulary, error) {
	if len(sentences) == 0 {
		return nil, errors.New("empty corpus")
	}
	if minCount < 1 {
		minCount = 1
	}

	seen := make(map[string]*wordCount)
	var order []*wordCount
	for _, sentence := range sentences {
		for _, w := range sentence {
			wc, ok := seen[w]
			if !ok {
				wc = &wordCount{word: w, first: len(order)}
				seen[w] = wc
				order = append(order, wc)
			}
			wc.count++
		}
	}

	kept := make([]*wordCount, 0, len(order))
	for _, wc := range order {
		if wc.count >= minCount {
			kept = append(kept, wc)
		}
	}
	if len(kept) == 0 {
		return nil, errors.Errorf("no word occurs at least %d times", minCount)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].count > kept[j].count
	})

	v := &Vocabulary{
		index:  make(map[string]int, len(kept)),
		words:  make([]string, len(kept)),
		counts: make([]int, len(kept)),
	}
	for i, wc := range kept {
		v.index[wc.word] = i
		v.words[i] = wc.word
		v.counts[i] = wc.count
	}
	return v, nil
}

// Index returns the index of word or an error wrapping ErrUnknownWord
func (v *Vocabulary) Index(word string) (int, error) {
	idx, ok := v.index[word]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownWord, "%q", word)
	}
	return idx, nil
}

// Word returns the word at idx
func (v *Vocabulary) Word(idx int) (string, error) {
	if idx < 0 || idx >= len(v.words) {
		return "", errors.Errorf("index %d out of range [0, %d)", idx, len(v.words))
	}
	return v.words[idx], nil
}

// Count returns the corpus frequency of word, 0 when not retained
func (v *Vocabulary) Count(word string) int {
	idx, ok := v.index[word]
	if !ok {
		return 0
	}
	return v.counts[idx]
}

// Size returns the number of words
func (v *Vocabulary) Size() int {
	return len(v.words)
}

// Words returns the words in index order
func (v *Vocabulary) Words() []string {
	out := make([]string, len(v.words))
	copy(out, v.words)
	return out
}

// Dim returns the embedding dimensionality, 0 before training
func (v *Vocabulary) Dim() int {
	if v.weights == nil {
		return 0
	}
	_, c := v.weights.Dims()
	return c
}

// Weights returns the Size x Dim embedding matrix, row i belonging to word i
func (v *Vocabulary) Weights() *mat.Dense {
	return v.weights
}

// Vector returns a copy of the embedding of word
func (v *Vocabulary) Vector(word string) ([]float64, error) {
	idx, err := v.Index(word)
	if err != nil {
		return nil, err
	}
	if v.weights == nil {
		return nil, errors.New("vocabulary has no trained weights")
	}
	return mat.Row(nil, idx, v.weights), nil
}
