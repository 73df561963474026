package optimizer

import "math"

// AdamOptimizerState represents Adam optimizer state
type AdamOptimizerState struct {
	// Hyperparameters
	LearningRate float64
	Beta1        float64 // Momentum decay (typically 0.9)
	Beta2        float64 // Variance decay (typically 0.999)
	Epsilon      float64 // Small constant to prevent division by zero
	WeightDecay  float64 // L2 regularization coefficient

	// Step tracking for bias correction
	StepCount uint64

	state slotState // slot 0: first moment, slot 1: second moment
}

// AdamConfig holds configuration for Adam optimizer
type AdamConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	WeightDecay  float64
}

// DefaultAdamConfig returns default Adam optimizer configuration
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-7,
		WeightDecay:  0.0,
	}
}

// NewAdamOptimizer creates a new Adam optimizer
func NewAdamOptimizer(config AdamConfig) *AdamOptimizerState {
	return &AdamOptimizerState{
		LearningRate: config.LearningRate,
		Beta1:        config.Beta1,
		Beta2:        config.Beta2,
		Epsilon:      config.Epsilon,
		WeightDecay:  config.WeightDecay,
		state:        newSlotState(2),
	}
}

// Step performs a single Adam optimization step. The bias correction is
// folded into the step size:
//
//	lr_t = lr * sqrt(1 - beta2^t) / (1 - beta1^t)
//	p -= lr_t * m / (sqrt(v) + eps)
func (adam *AdamOptimizerState) Step(params []*Param) error {
	if err := adam.state.ensure(params); err != nil {
		return err
	}
	adam.StepCount++

	t := float64(adam.StepCount)
	lrT := adam.LearningRate * math.Sqrt(1-math.Pow(adam.Beta2, t)) / (1 - math.Pow(adam.Beta1, t))

	for i, p := range params {
		m := adam.state.slots[0][i]
		v := adam.state.slots[1][i]
		for j, g := range p.Grad {
			if adam.WeightDecay != 0 {
				g += adam.WeightDecay * p.Value[j]
			}
			m[j] = adam.Beta1*m[j] + (1-adam.Beta1)*g
			v[j] = adam.Beta2*v[j] + (1-adam.Beta2)*g*g
			p.Value[j] -= lrT * m[j] / (math.Sqrt(v[j]) + adam.Epsilon)
		}
	}
	return nil
}

// GetStepCount returns the current step count
func (adam *AdamOptimizerState) GetStepCount() uint64 {
	return adam.StepCount
}

// UpdateLearningRate updates the learning rate
func (adam *AdamOptimizerState) UpdateLearningRate(lr float64) {
	adam.LearningRate = lr
}

// Name returns "adam"
func (adam *AdamOptimizerState) Name() string {
	return "adam"
}

// AdamaxOptimizerState is the infinity-norm variant of Adam
type AdamaxOptimizerState struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	StepCount uint64

	state slotState // slot 0: first moment, slot 1: exponentially weighted infinity norm
}

// AdamaxConfig holds configuration for Adamax optimizer
type AdamaxConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
}

// DefaultAdamaxConfig returns default Adamax optimizer configuration
func DefaultAdamaxConfig() AdamaxConfig {
	return AdamaxConfig{
		LearningRate: 0.002,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-7,
	}
}

// NewAdamaxOptimizer creates a new Adamax optimizer
func NewAdamaxOptimizer(config AdamaxConfig) *AdamaxOptimizerState {
	return &AdamaxOptimizerState{
		LearningRate: config.LearningRate,
		Beta1:        config.Beta1,
		Beta2:        config.Beta2,
		Epsilon:      config.Epsilon,
		state:        newSlotState(2),
	}
}

// Step performs a single Adamax update
func (a *AdamaxOptimizerState) Step(params []*Param) error {
	if err := a.state.ensure(params); err != nil {
		return err
	}
	a.StepCount++

	lrT := a.LearningRate / (1 - math.Pow(a.Beta1, float64(a.StepCount)))
	for i, p := range params {
		m := a.state.slots[0][i]
		u := a.state.slots[1][i]
		for j, g := range p.Grad {
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*g
			u[j] = math.Max(a.Beta2*u[j], math.Abs(g))
			p.Value[j] -= lrT * m[j] / (u[j] + a.Epsilon)
		}
	}
	return nil
}

// GetStepCount returns the current step count
func (a *AdamaxOptimizerState) GetStepCount() uint64 {
	return a.StepCount
}

// UpdateLearningRate updates the learning rate
func (a *AdamaxOptimizerState) UpdateLearningRate(lr float64) {
	a.LearningRate = lr
}

// Name returns "adamax"
func (a *AdamaxOptimizerState) Name() string {
	return "adamax"
}
