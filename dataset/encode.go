package dataset

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel fills the positions after the end of a phrase
const Sentinel = 0

// Lookup maps a word to its vocabulary index
type Lookup interface {
	Index(word string) (int, error)
}

// Encoded is the padded index tensor X of shape (N, MaxLen) with labels Y
type Encoded struct {
	X      [][]int
	Y      []int
	MaxLen int
}

// Encode places each phrase's indices at the start of a maxLen row and
// leaves the tail at Sentinel. A word missing from lookup is fatal.
func Encode(phrases []Phrase, labels []int, maxLen int, lookup Lookup) (*Encoded, error) {
	if len(labels) != len(phrases) {
		return nil, errors.Errorf("%d phrases but %d labels", len(phrases), len(labels))
	}

	enc := &Encoded{
		X:      make([][]int, len(phrases)),
		Y:      make([]int, len(labels)),
		MaxLen: maxLen,
	}
	copy(enc.Y, labels)

	// One backing array keeps the tensor contiguous
	buf := make([]int, len(phrases)*maxLen)
	for i, phrase := range phrases {
		if len(phrase) > maxLen {
			return nil, errors.Errorf("phrase %d has %d tokens, longer than max length %d", i, len(phrase), maxLen)
		}
		row := buf[i*maxLen : (i+1)*maxLen : (i+1)*maxLen]
		for j := range row {
			row[j] = Sentinel
		}
		for j, word := range phrase {
			idx, err := lookup.Index(word)
			if err != nil {
				return nil, errors.Wrapf(err, "encoding phrase %d", i)
			}
			row[j] = idx
		}
		enc.X[i] = row
	}
	return enc, nil
}

// Len returns the number of examples
func (e *Encoded) Len() int {
	return len(e.X)
}

// Get returns the index sequence and label of example idx
func (e *Encoded) Get(idx int) ([]int, int, error) {
	if idx < 0 || idx >= len(e.X) {
		return nil, 0, fmt.Errorf("index %d out of range [0, %d)", idx, len(e.X))
	}
	return e.X[idx], e.Y[idx], nil
}

// Shapes renders the tensor shapes as "(N, L)" and "(N,)"
func (e *Encoded) Shapes() (x, y string) {
	return fmt.Sprintf("(%d, %d)", len(e.X), e.MaxLen), fmt.Sprintf("(%d,)", len(e.Y))
}
