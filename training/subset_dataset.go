package training

import (
	"fmt"
)

// SubsetDataset exposes selected samples of an underlying dataset, such as
// the train or held-out part of a cross-validation fold.
type SubsetDataset struct {
	originalDataset Dataset
	indices         []int
}

// NewSubsetDataset creates a new SubsetDataset that wraps an existing dataset
// and exposes only the samples at indices, in that order.
func NewSubsetDataset(original Dataset, indices []int) (*SubsetDataset, error) {
	n := original.Len()
	for _, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("subset index %d out of range [0, %d)", idx, n)
		}
	}
	own := make([]int, len(indices))
	copy(own, indices)
	return &SubsetDataset{
		originalDataset: original,
		indices:         own,
	}, nil
}

// Len returns the number of samples in the subset
func (sd *SubsetDataset) Len() int {
	return len(sd.indices)
}

// Get returns subset sample idx from the original dataset
func (sd *SubsetDataset) Get(idx int) ([]int, int, error) {
	if idx < 0 || idx >= len(sd.indices) {
		return nil, 0, fmt.Errorf("index out of bounds for subset: %d (size: %d)", idx, len(sd.indices))
	}
	return sd.originalDataset.Get(sd.indices[idx])
}
