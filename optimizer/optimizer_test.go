package optimizer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scalarParam(value, grad float64) *Param {
	return &Param{Name: "w", Value: []float64{value}, Grad: []float64{grad}}
}

func TestRegistryNames(t *testing.T) {
	assert.Equal(t, []string{"adadelta", "adagrad", "adam", "adamax", "nadam", "rmsprop", "sgd"}, Names())
	assert.True(t, IsRegistered("Adam"))
	assert.True(t, IsRegistered(" RMSprop "))
	assert.False(t, IsRegistered("lbfgs"))
}

func TestDefaultLearningRates(t *testing.T) {
	tests := []struct {
		name string
		lr   float64
	}{
		{"sgd", 0.01},
		{"rmsprop", 0.001},
		{"adagrad", 0.01},
		{"adadelta", 1.0},
		{"adam", 0.001},
		{"adamax", 0.002},
		{"nadam", 0.002},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lr, err := DefaultLearningRate(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.lr, lr)

			opt, err := New(tt.name, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.name, opt.Name())
			assert.Equal(t, uint64(0), opt.GetStepCount())
		})
	}
}

func TestNewUnknownOptimizer(t *testing.T) {
	_, err := New("lbfgs", 0.1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown optimizer")

	_, err = DefaultLearningRate("")
	assert.Error(t, err)
}

func TestSGDStep(t *testing.T) {
	opt := NewSGDOptimizer(SGDConfig{LearningRate: 0.1})
	p := scalarParam(1.0, 0.5)
	require.NoError(t, opt.Step([]*Param{p}))
	assert.InDelta(t, 0.95, p.Value[0], 1e-12)
	assert.Equal(t, uint64(1), opt.GetStepCount())
}

func TestSGDMomentum(t *testing.T) {
	opt := NewSGDOptimizer(SGDConfig{LearningRate: 0.1, Momentum: 0.9})
	p := scalarParam(1.0, 0.5)
	require.NoError(t, opt.Step([]*Param{p}))
	assert.InDelta(t, 0.95, p.Value[0], 1e-12)
	require.NoError(t, opt.Step([]*Param{p}))
	// v = 0.9*(-0.05) - 0.05
	assert.InDelta(t, 0.855, p.Value[0], 1e-12)
}

func TestFirstStepMagnitudes(t *testing.T) {
	// With zero-initialized moments the first update of the adaptive
	// optimizers has a closed form independent of the gradient scale.
	tests := []struct {
		name     string
		opt      Optimizer
		expected float64
	}{
		{"adam", NewAdamOptimizer(DefaultAdamConfig()), 1 - 0.001},
		{"adamax", NewAdamaxOptimizer(DefaultAdamaxConfig()), 1 - 0.002},
		{"adagrad", NewAdaGradOptimizer(DefaultAdaGradConfig()), 1 - 0.01},
		{"rmsprop", NewRMSPropOptimizer(DefaultRMSPropConfig()), 1 - 0.001/math.Sqrt(0.1)},
		{"adadelta", NewAdaDeltaOptimizer(DefaultAdaDeltaConfig()), 1 - 0.5*math.Sqrt(1e-7)/math.Sqrt(0.05*0.25+1e-7)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := scalarParam(1.0, 0.5)
			require.NoError(t, tt.opt.Step([]*Param{p}))
			assert.InDelta(t, tt.expected, p.Value[0], 1e-5)
		})
	}
}

func TestOptimizersMinimizeQuadratic(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			opt, err := New(name, 0)
			require.NoError(t, err)

			p := &Param{Name: "x", Value: []float64{0, 6}, Grad: make([]float64, 2)}
			start := quadratic(p.Value)
			for i := 0; i < 200; i++ {
				for j, x := range p.Value {
					p.Grad[j] = 2 * (x - 3)
				}
				require.NoError(t, opt.Step([]*Param{p}))
			}
			assert.Less(t, quadratic(p.Value), start)
			assert.Equal(t, uint64(200), opt.GetStepCount())
		})
	}
}

func quadratic(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += (v - 3) * (v - 3)
	}
	return s
}

func TestUpdateLearningRate(t *testing.T) {
	opt, err := New("sgd", 0.1)
	require.NoError(t, err)
	opt.UpdateLearningRate(0.2)

	p := scalarParam(1.0, 1.0)
	require.NoError(t, opt.Step([]*Param{p}))
	assert.InDelta(t, 0.8, p.Value[0], 1e-12)
}

func TestStepRejectsShapeChanges(t *testing.T) {
	opt := NewAdamOptimizer(DefaultAdamConfig())
	p := &Param{Name: "w", Value: make([]float64, 3), Grad: make([]float64, 3)}
	require.NoError(t, opt.Step([]*Param{p}))

	err := opt.Step([]*Param{p, p})
	assert.Error(t, err)

	err = opt.Step([]*Param{{Name: "w", Value: make([]float64, 4), Grad: make([]float64, 4)}})
	assert.Error(t, err)

	err = opt.Step([]*Param{{Name: "w", Value: make([]float64, 3), Grad: make([]float64, 2)}})
	assert.Error(t, err)
}

func TestAdaGradInitialAccumulator(t *testing.T) {
	cfg := DefaultAdaGradConfig()
	cfg.InitialAccumulatorValue = 0.75
	opt := NewAdaGradOptimizer(cfg)

	p := scalarParam(1.0, 0.5)
	require.NoError(t, opt.Step([]*Param{p}))
	// acc = 0.75 + 0.25 = 1
	assert.InDelta(t, 1-0.01*0.5/(1+1e-7), p.Value[0], 1e-12)
}

func TestNadamMomentumSchedule(t *testing.T) {
	opt := NewNadamOptimizer(DefaultNadamConfig())
	p := scalarParam(1.0, 0.5)
	require.NoError(t, opt.Step([]*Param{p}))
	require.NoError(t, opt.Step([]*Param{p}))

	mu1 := 0.9 * (1 - 0.5*math.Pow(0.96, 0.004))
	mu2 := 0.9 * (1 - 0.5*math.Pow(0.96, 0.008))
	assert.InDelta(t, mu1*mu2, opt.mSchedule, 1e-12)
	assert.Less(t, p.Value[0], 1.0)
}
