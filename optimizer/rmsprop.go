package optimizer

import "math"

// RMSPropOptimizerState represents RMSProp optimizer state
type RMSPropOptimizerState struct {
	// Hyperparameters
	LearningRate float64
	Alpha        float64 // Smoothing constant (rho), typically 0.9
	Epsilon      float64
	WeightDecay  float64
	Momentum     float64
	Centered     bool // Normalize by the estimated variance instead of the raw second moment

	StepCount uint64

	state slotState // slot 0: squared grad average, slot 1: momentum, slot 2: grad average
}

// RMSPropConfig holds configuration for RMSProp optimizer
type RMSPropConfig struct {
	LearningRate float64
	Alpha        float64
	Epsilon      float64
	WeightDecay  float64
	Momentum     float64
	Centered     bool
}

// DefaultRMSPropConfig returns default RMSProp optimizer configuration
func DefaultRMSPropConfig() RMSPropConfig {
	return RMSPropConfig{
		LearningRate: 0.001,
		Alpha:        0.9,
		Epsilon:      1e-7,
		WeightDecay:  0.0,
		Momentum:     0.0,
		Centered:     false,
	}
}

// NewRMSPropOptimizer creates a new RMSProp optimizer
func NewRMSPropOptimizer(config RMSPropConfig) *RMSPropOptimizerState {
	return &RMSPropOptimizerState{
		LearningRate: config.LearningRate,
		Alpha:        config.Alpha,
		Epsilon:      config.Epsilon,
		WeightDecay:  config.WeightDecay,
		Momentum:     config.Momentum,
		Centered:     config.Centered,
		state:        newSlotState(3),
	}
}

// Step performs a single RMSProp update
func (rms *RMSPropOptimizerState) Step(params []*Param) error {
	if err := rms.state.ensure(params); err != nil {
		return err
	}
	rms.StepCount++

	for i, p := range params {
		sq := rms.state.slots[0][i]
		mom := rms.state.slots[1][i]
		avg := rms.state.slots[2][i]
		for j, g := range p.Grad {
			if rms.WeightDecay != 0 {
				g += rms.WeightDecay * p.Value[j]
			}
			sq[j] = rms.Alpha*sq[j] + (1-rms.Alpha)*g*g
			denom := sq[j]
			if rms.Centered {
				avg[j] = rms.Alpha*avg[j] + (1-rms.Alpha)*g
				denom -= avg[j] * avg[j]
			}
			update := g / (math.Sqrt(denom) + rms.Epsilon)
			if rms.Momentum > 0 {
				mom[j] = rms.Momentum*mom[j] + update
				update = mom[j]
			}
			p.Value[j] -= rms.LearningRate * update
		}
	}
	return nil
}

// GetStepCount returns the current step count
func (rms *RMSPropOptimizerState) GetStepCount() uint64 {
	return rms.StepCount
}

// UpdateLearningRate updates the learning rate
func (rms *RMSPropOptimizerState) UpdateLearningRate(lr float64) {
	rms.LearningRate = lr
}

// Name returns "rmsprop"
func (rms *RMSPropOptimizerState) Name() string {
	return "rmsprop"
}
