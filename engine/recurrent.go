package engine

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// cell runs one recurrent direction over a whole sequence
type cell interface {
	// forward returns the hidden state after every step
	forward(xs sequence, training bool) sequence
	// backward takes dLoss/dh for every step (nil entries are zero) and
	// returns dLoss/dx for every step, accumulating parameter gradients.
	backward(dhs sequence) sequence
	parameters() []*param
}

// cellConfig is shared by LSTM and GRU cells
type cellConfig struct {
	inputSize        int
	units            int
	dropout          float64
	recurrentDropout float64
	rng              *rand.Rand
}

// masks holds the per-sequence dropout masks. Keras samples them once per
// batch and reuses them at every time step.
type masks struct {
	input, state *mat.Dense
}

func (c cellConfig) sampleMasks(batch int, training bool) masks {
	var m masks
	if !training {
		return m
	}
	if c.dropout > 0 {
		m.input = dropoutMask(c.rng, batch, c.inputSize, c.dropout)
	}
	if c.recurrentDropout > 0 {
		m.state = dropoutMask(c.rng, batch, c.units, c.recurrentDropout)
	}
	return m
}

// lstmStep caches what backward needs from one forward step
type lstmStep struct {
	x     *mat.Dense // masked input
	hr    *mat.Dense // masked previous hidden state
	c0    *mat.Dense // previous cell state
	gates *mat.Dense // activated i, f, c̃, o blocks
	tanhC *mat.Dense
}

// lstmCell is a Keras-compatible LSTM cell with gate order i, f, c, o
type lstmCell struct {
	cellConfig
	kernel, recurrentKernel, bias *param

	masks masks
	steps []lstmStep
}

func newLSTMCell(cfg cellConfig, kernel, recurrentKernel, bias *param) *lstmCell {
	return &lstmCell{cellConfig: cfg, kernel: kernel, recurrentKernel: recurrentKernel, bias: bias}
}

func (c *lstmCell) parameters() []*param {
	return []*param{c.kernel, c.recurrentKernel, c.bias}
}

func (c *lstmCell) forward(xs sequence, training bool) sequence {
	batch, _ := xs[0].Dims()
	u := c.units
	c.masks = c.sampleMasks(batch, training)
	c.steps = c.steps[:0]

	h := mat.NewDense(batch, u, nil)
	cs := mat.NewDense(batch, u, nil)
	out := make(sequence, len(xs))

	for t, x := range xs {
		xm := applyMask(x, c.masks.input)
		hm := applyMask(h, c.masks.state)

		z := mat.NewDense(batch, 4*u, nil)
		z.Mul(xm, c.kernel.value)
		var rec mat.Dense
		rec.Mul(hm, c.recurrentKernel.value)
		z.Add(z, &rec)
		addRowVector(z, c.bias.value)

		cNew := mat.NewDense(batch, u, nil)
		tanhC := mat.NewDense(batch, u, nil)
		hNew := mat.NewDense(batch, u, nil)
		for r := 0; r < batch; r++ {
			g := z.RawRowView(r)
			prev := cs.RawRowView(r)
			cRow, tRow, hRow := cNew.RawRowView(r), tanhC.RawRowView(r), hNew.RawRowView(r)
			for j := 0; j < u; j++ {
				g[j] = sigmoid(g[j])
				g[u+j] = sigmoid(g[u+j])
				g[2*u+j] = math.Tanh(g[2*u+j])
				g[3*u+j] = sigmoid(g[3*u+j])

				cRow[j] = g[u+j]*prev[j] + g[j]*g[2*u+j]
				tRow[j] = math.Tanh(cRow[j])
				hRow[j] = g[3*u+j] * tRow[j]
			}
		}

		c.steps = append(c.steps, lstmStep{x: xm, hr: hm, c0: cs, gates: z, tanhC: tanhC})
		h, cs = hNew, cNew
		out[t] = hNew
	}
	return out
}

func (c *lstmCell) backward(dhs sequence) sequence {
	T := len(c.steps)
	batch, _ := c.steps[0].gates.Dims()
	u := c.units

	dx := make(sequence, T)
	dhNext := mat.NewDense(batch, u, nil)
	dcNext := mat.NewDense(batch, u, nil)

	for t := T - 1; t >= 0; t-- {
		s := c.steps[t]
		dh := mat.DenseCopyOf(dhNext)
		if dhs[t] != nil {
			dh.Add(dh, dhs[t])
		}

		dz := mat.NewDense(batch, 4*u, nil)
		dcPrev := mat.NewDense(batch, u, nil)
		for r := 0; r < batch; r++ {
			g := s.gates.RawRowView(r)
			tc := s.tanhC.RawRowView(r)
			c0 := s.c0.RawRowView(r)
			dhRow, dcIn := dh.RawRowView(r), dcNext.RawRowView(r)
			dzRow, dcOut := dz.RawRowView(r), dcPrev.RawRowView(r)
			for j := 0; j < u; j++ {
				i, f, cc, o := g[j], g[u+j], g[2*u+j], g[3*u+j]
				dc := dcIn[j] + dhRow[j]*o*(1-tc[j]*tc[j])
				dzRow[j] = dc * cc * i * (1 - i)
				dzRow[u+j] = dc * c0[j] * f * (1 - f)
				dzRow[2*u+j] = dc * i * (1 - cc*cc)
				dzRow[3*u+j] = dhRow[j] * tc[j] * o * (1 - o)
				dcOut[j] = dc * f
			}
		}

		accumulateTransposeProduct(c.kernel.grad, s.x, dz)
		accumulateTransposeProduct(c.recurrentKernel.grad, s.hr, dz)
		accumulateColumnSums(c.bias.grad, dz)

		dxm := mat.NewDense(batch, c.inputSize, nil)
		dxm.Mul(dz, c.kernel.value.T())
		dx[t] = applyMask(dxm, c.masks.input)

		dhr := mat.NewDense(batch, u, nil)
		dhr.Mul(dz, c.recurrentKernel.value.T())
		dhNext = applyMask(dhr, c.masks.state)
		dcNext = dcPrev
	}
	return dx
}

// gruStep caches what backward needs from one forward step
type gruStep struct {
	x     *mat.Dense // masked input
	h0    *mat.Dense // previous hidden state
	hr    *mat.Dense // masked previous hidden state
	rh    *mat.Dense // r ⊙ hr
	gates *mat.Dense // activated z, r, h̃ blocks
}

// gruCell is a Keras-compatible GRU cell (reset_after=false) with gate
// order z, r, h
type gruCell struct {
	cellConfig
	kernel, recurrentKernel, bias *param

	masks masks
	steps []gruStep
}

func newGRUCell(cfg cellConfig, kernel, recurrentKernel, bias *param) *gruCell {
	return &gruCell{cellConfig: cfg, kernel: kernel, recurrentKernel: recurrentKernel, bias: bias}
}

func (c *gruCell) parameters() []*param {
	return []*param{c.kernel, c.recurrentKernel, c.bias}
}

func (c *gruCell) forward(xs sequence, training bool) sequence {
	batch, _ := xs[0].Dims()
	u := c.units
	c.masks = c.sampleMasks(batch, training)
	c.steps = c.steps[:0]

	uZR := columns(c.recurrentKernel.value, 0, 2*u)
	uH := columns(c.recurrentKernel.value, 2*u, 3*u)

	h := mat.NewDense(batch, u, nil)
	out := make(sequence, len(xs))

	for t, x := range xs {
		xm := applyMask(x, c.masks.input)
		hm := applyMask(h, c.masks.state)

		xw := mat.NewDense(batch, 3*u, nil)
		xw.Mul(xm, c.kernel.value)
		addRowVector(xw, c.bias.value)

		zr := mat.NewDense(batch, 2*u, nil)
		zr.Mul(hm, uZR)

		gates := mat.NewDense(batch, 3*u, nil)
		for r := 0; r < batch; r++ {
			g, in, rec := gates.RawRowView(r), xw.RawRowView(r), zr.RawRowView(r)
			for j := 0; j < 2*u; j++ {
				g[j] = sigmoid(in[j] + rec[j])
			}
		}

		rh := mat.NewDense(batch, u, nil)
		rh.MulElem(columns(gates, u, 2*u), hm)
		candidate := mat.NewDense(batch, u, nil)
		candidate.Mul(rh, uH)

		hNew := mat.NewDense(batch, u, nil)
		for r := 0; r < batch; r++ {
			g, in, cand := gates.RawRowView(r), xw.RawRowView(r), candidate.RawRowView(r)
			prev, hRow := h.RawRowView(r), hNew.RawRowView(r)
			for j := 0; j < u; j++ {
				hh := math.Tanh(in[2*u+j] + cand[j])
				g[2*u+j] = hh
				z := g[j]
				hRow[j] = z*prev[j] + (1-z)*hh
			}
		}

		c.steps = append(c.steps, gruStep{x: xm, h0: h, hr: hm, rh: rh, gates: gates})
		h = hNew
		out[t] = hNew
	}
	return out
}

func (c *gruCell) backward(dhs sequence) sequence {
	T := len(c.steps)
	batch, _ := c.steps[0].gates.Dims()
	u := c.units

	uZR := columns(c.recurrentKernel.value, 0, 2*u)
	uH := columns(c.recurrentKernel.value, 2*u, 3*u)
	gradZR := columns(c.recurrentKernel.grad, 0, 2*u)
	gradH := columns(c.recurrentKernel.grad, 2*u, 3*u)

	dx := make(sequence, T)
	dhNext := mat.NewDense(batch, u, nil)

	for t := T - 1; t >= 0; t-- {
		s := c.steps[t]
		dh := mat.DenseCopyOf(dhNext)
		if dhs[t] != nil {
			dh.Add(dh, dhs[t])
		}

		da := mat.NewDense(batch, 3*u, nil)
		dhPrev := mat.NewDense(batch, u, nil)
		for r := 0; r < batch; r++ {
			g, h0 := s.gates.RawRowView(r), s.h0.RawRowView(r)
			dhRow, daRow, prevRow := dh.RawRowView(r), da.RawRowView(r), dhPrev.RawRowView(r)
			for j := 0; j < u; j++ {
				z, hh := g[j], g[2*u+j]
				daRow[j] = dhRow[j] * (h0[j] - hh) * z * (1 - z)
				daRow[2*u+j] = dhRow[j] * (1 - z) * (1 - hh*hh)
				prevRow[j] = dhRow[j] * z
			}
		}

		daH := columns(da, 2*u, 3*u)
		accumulateTransposeProduct(gradH, s.rh, daH)
		drh := mat.NewDense(batch, u, nil)
		drh.Mul(daH, uH.T())

		dhr := mat.NewDense(batch, u, nil)
		for r := 0; r < batch; r++ {
			g, hr := s.gates.RawRowView(r), s.hr.RawRowView(r)
			drhRow, daRow, dhrRow := drh.RawRowView(r), da.RawRowView(r), dhr.RawRowView(r)
			for j := 0; j < u; j++ {
				rr := g[u+j]
				daRow[u+j] = drhRow[j] * hr[j] * rr * (1 - rr)
				dhrRow[j] = drhRow[j] * rr
			}
		}

		daZR := columns(da, 0, 2*u)
		accumulateTransposeProduct(gradZR, s.hr, daZR)
		var viaGates mat.Dense
		viaGates.Mul(daZR, uZR.T())
		dhr.Add(dhr, &viaGates)

		accumulateTransposeProduct(c.kernel.grad, s.x, da)
		accumulateColumnSums(c.bias.grad, da)

		dxm := mat.NewDense(batch, c.inputSize, nil)
		dxm.Mul(da, c.kernel.value.T())
		dx[t] = applyMask(dxm, c.masks.input)

		dhPrev.Add(dhPrev, applyMask(dhr, c.masks.state))
		dhNext = dhPrev
	}
	return dx
}

// recurrentLayer runs one or two cells over the sequence. The backward
// cell sees the reversed sequence and its outputs are re-reversed before
// being concatenated after the forward features.
type recurrentLayer struct {
	name            string
	units           int
	returnSequences bool
	forwardCell     cell
	backwardCell    cell // nil unless bidirectional
	steps           int
}

func (l *recurrentLayer) parameters() []*param {
	ps := l.forwardCell.parameters()
	if l.backwardCell != nil {
		ps = append(ps, l.backwardCell.parameters()...)
	}
	return ps
}

func (l *recurrentLayer) forward(in sequence, training bool) sequence {
	l.steps = len(in)
	hf := l.forwardCell.forward(in, training)
	var hb sequence
	if l.backwardCell != nil {
		hb = l.backwardCell.forward(reversed(in), training)
	}

	last := len(in) - 1
	if !l.returnSequences {
		var b *mat.Dense
		if hb != nil {
			b = hb[last]
		}
		return sequence{hconcat(hf[last], b)}
	}

	out := make(sequence, len(in))
	for t := range in {
		var b *mat.Dense
		if hb != nil {
			b = hb[last-t]
		}
		out[t] = hconcat(hf[t], b)
	}
	return out
}

func (l *recurrentLayer) backward(dOut sequence) sequence {
	T := l.steps
	last := T - 1
	u := l.units
	bi := l.backwardCell != nil

	split := func(d *mat.Dense) (*mat.Dense, *mat.Dense) {
		if !bi {
			return d, nil
		}
		return columns(d, 0, u), columns(d, u, 2*u)
	}

	dF := make(sequence, T)
	dB := make(sequence, T) // in the backward cell's processing order
	if l.returnSequences {
		for t := 0; t < T; t++ {
			dF[t], dB[last-t] = split(dOut[t])
		}
	} else {
		dF[last], dB[last] = split(dOut[0])
	}

	dx := l.forwardCell.backward(dF)
	if bi {
		dxB := l.backwardCell.backward(dB)
		for t := 0; t < T; t++ {
			dx[t].Add(dx[t], dxB[last-t])
		}
	}
	return dx
}
