package optimizer

import "math"

// AdaDeltaOptimizerState represents AdaDelta optimizer state
type AdaDeltaOptimizerState struct {
	LearningRate float64 // Scales the computed update; 1.0 is the classic algorithm
	Rho          float64 // Decay rate for running averages
	Epsilon      float64
	WeightDecay  float64

	StepCount uint64

	state slotState // slot 0: squared grad average, slot 1: squared update average
}

// AdaDeltaConfig holds configuration for AdaDelta optimizer
type AdaDeltaConfig struct {
	LearningRate float64
	Rho          float64
	Epsilon      float64
	WeightDecay  float64
}

// DefaultAdaDeltaConfig returns default AdaDelta optimizer configuration
func DefaultAdaDeltaConfig() AdaDeltaConfig {
	return AdaDeltaConfig{
		LearningRate: 1.0,
		Rho:          0.95,
		Epsilon:      1e-7,
		WeightDecay:  0.0,
	}
}

// NewAdaDeltaOptimizer creates a new AdaDelta optimizer
func NewAdaDeltaOptimizer(config AdaDeltaConfig) *AdaDeltaOptimizerState {
	return &AdaDeltaOptimizerState{
		LearningRate: config.LearningRate,
		Rho:          config.Rho,
		Epsilon:      config.Epsilon,
		WeightDecay:  config.WeightDecay,
		state:        newSlotState(2),
	}
}

// Step performs a single AdaDelta update
func (ad *AdaDeltaOptimizerState) Step(params []*Param) error {
	if err := ad.state.ensure(params); err != nil {
		return err
	}
	ad.StepCount++

	for i, p := range params {
		sqGrad := ad.state.slots[0][i]
		sqUpdate := ad.state.slots[1][i]
		for j, g := range p.Grad {
			if ad.WeightDecay != 0 {
				g += ad.WeightDecay * p.Value[j]
			}
			sqGrad[j] = ad.Rho*sqGrad[j] + (1-ad.Rho)*g*g
			update := g * math.Sqrt(sqUpdate[j]+ad.Epsilon) / math.Sqrt(sqGrad[j]+ad.Epsilon)
			p.Value[j] -= ad.LearningRate * update
			sqUpdate[j] = ad.Rho*sqUpdate[j] + (1-ad.Rho)*update*update
		}
	}
	return nil
}

// GetStepCount returns the current step count
func (ad *AdaDeltaOptimizerState) GetStepCount() uint64 {
	return ad.StepCount
}

// UpdateLearningRate updates the learning rate
func (ad *AdaDeltaOptimizerState) UpdateLearningRate(lr float64) {
	ad.LearningRate = lr
}

// Name returns "adadelta"
func (ad *AdaDeltaOptimizerState) Name() string {
	return "adadelta"
}
