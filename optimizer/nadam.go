package optimizer

import "math"

// NadamOptimizerState represents Nesterov-accelerated Adam state
type NadamOptimizerState struct {
	LearningRate  float64
	Beta1         float64
	Beta2         float64
	Epsilon       float64
	ScheduleDecay float64 // Momentum schedule decay (0.004 in Dozat's paper)

	StepCount uint64

	mSchedule float64   // running product of momentum cache values
	state     slotState // slot 0: first moment, slot 1: second moment
}

// NadamConfig holds configuration for Nadam optimizer
type NadamConfig struct {
	LearningRate  float64
	Beta1         float64
	Beta2         float64
	Epsilon       float64
	ScheduleDecay float64
}

// DefaultNadamConfig returns default Nadam optimizer configuration
func DefaultNadamConfig() NadamConfig {
	return NadamConfig{
		LearningRate:  0.002,
		Beta1:         0.9,
		Beta2:         0.999,
		Epsilon:       1e-7,
		ScheduleDecay: 0.004,
	}
}

// NewNadamOptimizer creates a new Nadam optimizer
func NewNadamOptimizer(config NadamConfig) *NadamOptimizerState {
	return &NadamOptimizerState{
		LearningRate:  config.LearningRate,
		Beta1:         config.Beta1,
		Beta2:         config.Beta2,
		Epsilon:       config.Epsilon,
		ScheduleDecay: config.ScheduleDecay,
		mSchedule:     1.0,
		state:         newSlotState(2),
	}
}

// Step performs a single Nadam update using the warming momentum schedule
// mu_t = beta1 * (1 - 0.5 * 0.96^(t*decay)).
func (n *NadamOptimizerState) Step(params []*Param) error {
	if err := n.state.ensure(params); err != nil {
		return err
	}
	n.StepCount++

	t := float64(n.StepCount)
	muT := n.Beta1 * (1 - 0.5*math.Pow(0.96, t*n.ScheduleDecay))
	muNext := n.Beta1 * (1 - 0.5*math.Pow(0.96, (t+1)*n.ScheduleDecay))
	scheduleNew := n.mSchedule * muT
	scheduleNext := scheduleNew * muNext
	n.mSchedule = scheduleNew
	beta2Pow := math.Pow(n.Beta2, t)

	for i, p := range params {
		m := n.state.slots[0][i]
		v := n.state.slots[1][i]
		for j, g := range p.Grad {
			gPrime := g / (1 - scheduleNew)
			m[j] = n.Beta1*m[j] + (1-n.Beta1)*g
			mPrime := m[j] / (1 - scheduleNext)
			v[j] = n.Beta2*v[j] + (1-n.Beta2)*g*g
			vPrime := v[j] / (1 - beta2Pow)
			mBar := (1-muT)*gPrime + muNext*mPrime
			p.Value[j] -= n.LearningRate * mBar / (math.Sqrt(vPrime) + n.Epsilon)
		}
	}
	return nil
}

// GetStepCount returns the current step count
func (n *NadamOptimizerState) GetStepCount() uint64 {
	return n.StepCount
}

// UpdateLearningRate updates the learning rate
func (n *NadamOptimizerState) UpdateLearningRate(lr float64) {
	n.LearningRate = lr
}

// Name returns "nadam"
func (n *NadamOptimizerState) Name() string {
	return "nadam"
}
