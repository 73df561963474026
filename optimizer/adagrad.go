package optimizer

import "math"

// AdaGradOptimizerState represents AdaGrad optimizer state
type AdaGradOptimizerState struct {
	LearningRate            float64
	Epsilon                 float64
	WeightDecay             float64
	InitialAccumulatorValue float64

	StepCount uint64

	state slotState // slot 0: sum of squared gradients
}

// AdaGradConfig holds configuration for AdaGrad optimizer
type AdaGradConfig struct {
	LearningRate            float64
	Epsilon                 float64
	WeightDecay             float64
	InitialAccumulatorValue float64
}

// DefaultAdaGradConfig returns default AdaGrad optimizer configuration
func DefaultAdaGradConfig() AdaGradConfig {
	return AdaGradConfig{
		LearningRate:            0.01,
		Epsilon:                 1e-7,
		WeightDecay:             0.0,
		InitialAccumulatorValue: 0.0,
	}
}

// NewAdaGradOptimizer creates a new AdaGrad optimizer
func NewAdaGradOptimizer(config AdaGradConfig) *AdaGradOptimizerState {
	return &AdaGradOptimizerState{
		LearningRate:            config.LearningRate,
		Epsilon:                 config.Epsilon,
		WeightDecay:             config.WeightDecay,
		InitialAccumulatorValue: config.InitialAccumulatorValue,
		state:                   newSlotState(1),
	}
}

// Step performs a single AdaGrad update: a += g^2; p -= lr*g/(sqrt(a)+eps)
func (ada *AdaGradOptimizerState) Step(params []*Param) error {
	first := ada.state.slots[0] == nil
	if err := ada.state.ensure(params); err != nil {
		return err
	}
	if first && ada.InitialAccumulatorValue != 0 {
		ada.state.fill(0, ada.InitialAccumulatorValue)
	}
	ada.StepCount++

	for i, p := range params {
		acc := ada.state.slots[0][i]
		for j, g := range p.Grad {
			if ada.WeightDecay != 0 {
				g += ada.WeightDecay * p.Value[j]
			}
			acc[j] += g * g
			p.Value[j] -= ada.LearningRate * g / (math.Sqrt(acc[j]) + ada.Epsilon)
		}
	}
	return nil
}

// GetStepCount returns the current step count
func (ada *AdaGradOptimizerState) GetStepCount() uint64 {
	return ada.StepCount
}

// UpdateLearningRate updates the learning rate
func (ada *AdaGradOptimizerState) UpdateLearningRate(lr float64) {
	ada.LearningRate = lr
}

// Name returns "adagrad"
func (ada *AdaGradOptimizerState) Name() string {
	return "adagrad"
}
