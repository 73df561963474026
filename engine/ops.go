package engine

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// sequence holds one batch-major matrix per time step. Layers that reduce
// over time emit a sequence of length one.
type sequence []*mat.Dense

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// columns returns the view of columns [from, to) of m. The view shares
// storage with m.
func columns(m *mat.Dense, from, to int) *mat.Dense {
	r, _ := m.Dims()
	return m.Slice(0, r, from, to).(*mat.Dense)
}

// addRowVector adds the 1×n vector v to every row of m
func addRowVector(m, v *mat.Dense) {
	bias := v.RawRowView(0)
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		floats.Add(m.RawRowView(i), bias)
	}
}

// accumulateColumnSums adds the column sums of m to the 1×n vector dst
func accumulateColumnSums(dst, m *mat.Dense) {
	out := dst.RawRowView(0)
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		floats.Add(out, m.RawRowView(i))
	}
}

// accumulateTransposeProduct adds aᵀ·b to dst
func accumulateTransposeProduct(dst *mat.Dense, a, b mat.Matrix) {
	var tmp mat.Dense
	tmp.Mul(a.T(), b)
	dst.Add(dst, &tmp)
}

// dropoutMask samples an inverted-dropout mask: each entry is 0 with
// probability rate and 1/(1-rate) otherwise.
func dropoutMask(rng *rand.Rand, rows, cols int, rate float64) *mat.Dense {
	keep := 1 - rate
	m := mat.NewDense(rows, cols, nil)
	data := m.RawMatrix().Data
	for i := range data {
		if rng.Float64() < keep {
			data[i] = 1 / keep
		}
	}
	return m
}

// applyMask returns x⊙mask, or x itself when mask is nil
func applyMask(x, mask *mat.Dense) *mat.Dense {
	if mask == nil {
		return x
	}
	var out mat.Dense
	out.MulElem(x, mask)
	return &out
}

// hconcat joins a and b side by side. b may be nil.
func hconcat(a, b *mat.Dense) *mat.Dense {
	if b == nil {
		return a
	}
	r, ca := a.Dims()
	_, cb := b.Dims()
	out := mat.NewDense(r, ca+cb, nil)
	columns(out, 0, ca).Copy(a)
	columns(out, ca, ca+cb).Copy(b)
	return out
}

func reversed(s sequence) sequence {
	out := make(sequence, len(s))
	for i, m := range s {
		out[len(s)-1-i] = m
	}
	return out
}
