package optimizer

// SGDOptimizerState holds SGD hyperparameters and momentum buffers
type SGDOptimizerState struct {
	// Hyperparameters
	LearningRate float64
	Momentum     float64 // Momentum coefficient (0 for vanilla SGD)
	WeightDecay  float64 // L2 regularization coefficient
	Nesterov     bool    // Whether to use Nesterov momentum

	// Step tracking
	StepCount uint64

	state slotState // slot 0: velocity
}

// SGDConfig holds configuration for SGD optimizer
type SGDConfig struct {
	LearningRate float64
	Momentum     float64
	WeightDecay  float64
	Nesterov     bool
}

// DefaultSGDConfig returns default SGD optimizer configuration
func DefaultSGDConfig() SGDConfig {
	return SGDConfig{
		LearningRate: 0.01,
		Momentum:     0.0,
		WeightDecay:  0.0,
		Nesterov:     false,
	}
}

// NewSGDOptimizer creates a new SGD optimizer
func NewSGDOptimizer(config SGDConfig) *SGDOptimizerState {
	return &SGDOptimizerState{
		LearningRate: config.LearningRate,
		Momentum:     config.Momentum,
		WeightDecay:  config.WeightDecay,
		Nesterov:     config.Nesterov,
		state:        newSlotState(1),
	}
}

// Step performs a single SGD update:
//
//	v = momentum*v - lr*g
//	p += v                          (plain momentum)
//	p += momentum*v - lr*g          (Nesterov)
func (sgd *SGDOptimizerState) Step(params []*Param) error {
	if err := sgd.state.ensure(params); err != nil {
		return err
	}
	sgd.StepCount++

	for i, p := range params {
		velocity := sgd.state.slots[0][i]
		for j, g := range p.Grad {
			if sgd.WeightDecay != 0 {
				g += sgd.WeightDecay * p.Value[j]
			}
			if sgd.Momentum == 0 {
				p.Value[j] -= sgd.LearningRate * g
				continue
			}
			v := sgd.Momentum*velocity[j] - sgd.LearningRate*g
			velocity[j] = v
			if sgd.Nesterov {
				p.Value[j] += sgd.Momentum*v - sgd.LearningRate*g
			} else {
				p.Value[j] += v
			}
		}
	}
	return nil
}

// GetStepCount returns the current step count
func (sgd *SGDOptimizerState) GetStepCount() uint64 {
	return sgd.StepCount
}

// UpdateLearningRate updates the learning rate
func (sgd *SGDOptimizerState) UpdateLearningRate(lr float64) {
	sgd.LearningRate = lr
}

// Name returns "sgd"
func (sgd *SGDOptimizerState) Name() string {
	return "sgd"
}
