package training

import (
	"fmt"
	"math/rand"
	"sync"
)

// Dataset interface defines methods that all datasets must implement
type Dataset interface {
	Len() int                                           // Total number of samples
	Get(idx int) (sequence []int, label int, err error) // Returns a single padded index sequence and its class
}

// DataLoader provides batching and shuffling over a Dataset
type DataLoader struct {
	dataset   Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand
	indices   []int
	position  int
	mutex     sync.Mutex
}

// NewDataLoader creates a new DataLoader. When shuffle is set every Reset
// draws a new permutation from a generator seeded with seed.
func NewDataLoader(dataset Dataset, batchSize int, shuffle bool, seed int64) *DataLoader {
	if batchSize <= 0 {
		batchSize = 1
	}

	datasetLen := dataset.Len()
	indices := make([]int, datasetLen)
	for i := range indices {
		indices[i] = i
	}

	return &DataLoader{
		dataset:   dataset,
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rand.New(rand.NewSource(seed)),
		indices:   indices,
		position:  0,
	}
}

// Batch represents a batch of sequences and labels
type Batch struct {
	Sequences [][]int
	Labels    []int
}

// Size returns the number of samples in the batch
func (b *Batch) Size() int {
	return len(b.Labels)
}

// Len returns the number of batches in an epoch
func (dl *DataLoader) Len() int {
	return (dl.dataset.Len() + dl.batchSize - 1) / dl.batchSize
}

// Reset resets the data loader for a new epoch
func (dl *DataLoader) Reset() {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()

	dl.position = 0

	if dl.shuffle {
		// Shuffle indices for new epoch
		for i := len(dl.indices) - 1; i > 0; i-- {
			j := dl.rng.Intn(i + 1)
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		}
	}
}

// Next returns the next batch or nil if epoch is complete
func (dl *DataLoader) Next() (*Batch, error) {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()

	if dl.position >= len(dl.indices) {
		return nil, nil // End of epoch
	}

	// Calculate batch end position; the last batch may be short
	batchEnd := dl.position + dl.batchSize
	if batchEnd > len(dl.indices) {
		batchEnd = len(dl.indices)
	}

	batchIndices := dl.indices[dl.position:batchEnd]
	dl.position = batchEnd

	batch, err := dl.loadBatch(batchIndices)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch: %v", err)
	}

	return batch, nil
}

// HasNext returns true if there are more batches in the current epoch
func (dl *DataLoader) HasNext() bool {
	dl.mutex.Lock()
	defer dl.mutex.Unlock()
	return dl.position < len(dl.indices)
}

// loadBatch gathers the samples at indices. Sequences share the dataset's
// backing arrays and must not be modified.
func (dl *DataLoader) loadBatch(indices []int) (*Batch, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("empty batch indices")
	}

	batch := &Batch{
		Sequences: make([][]int, len(indices)),
		Labels:    make([]int, len(indices)),
	}
	steps := -1
	for i, idx := range indices {
		seq, label, err := dl.dataset.Get(idx)
		if err != nil {
			return nil, fmt.Errorf("failed to load sample %d: %v", idx, err)
		}
		if steps < 0 {
			steps = len(seq)
		} else if len(seq) != steps {
			return nil, fmt.Errorf("sample %d has length %d, batch expects %d", idx, len(seq), steps)
		}
		batch.Sequences[i] = seq
		batch.Labels[i] = label
	}

	return batch, nil
}

// SimpleDataset provides a basic in-memory implementation of Dataset
type SimpleDataset struct {
	sequences [][]int
	labels    []int
}

// NewSimpleDataset creates a new SimpleDataset
func NewSimpleDataset(sequences [][]int, labels []int) (*SimpleDataset, error) {
	if len(sequences) != len(labels) {
		return nil, fmt.Errorf("sequences and labels must have the same length: %d vs %d", len(sequences), len(labels))
	}

	return &SimpleDataset{
		sequences: sequences,
		labels:    labels,
	}, nil
}

// Len returns the number of samples
func (sd *SimpleDataset) Len() int {
	return len(sd.sequences)
}

// Get returns a sample by index
func (sd *SimpleDataset) Get(idx int) ([]int, int, error) {
	if idx < 0 || idx >= len(sd.sequences) {
		return nil, 0, fmt.Errorf("index %d out of range [0, %d)", idx, len(sd.sequences))
	}
	return sd.sequences[idx], sd.labels[idx], nil
}
