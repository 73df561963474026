package optimizer

import (
	"fmt"
	"sort"
	"strings"
)

// Param is a single trainable weight tensor viewed as a flat slice together
// with its gradient. Value and Grad must have the same length and stay
// allocated for the lifetime of the optimizer.
type Param struct {
	Name  string
	Value []float64
	Grad  []float64
}

// Optimizer defines the common interface for all optimizers
type Optimizer interface {
	// Step performs a single optimization step over params.
	// The same params, in the same order, must be passed on every call.
	Step(params []*Param) error

	// GetStepCount returns the current optimization step number
	GetStepCount() uint64

	// UpdateLearningRate updates the learning rate
	UpdateLearningRate(lr float64)

	// Name returns the registry name of the optimizer ("adam", "sgd", ...)
	Name() string
}

// constructor builds an optimizer with the given learning rate. A
// non-positive rate selects the optimizer's default.
type constructor func(lr float64) Optimizer

type registration struct {
	defaultLR float64
	create    constructor
}

var registry = map[string]registration{
	"sgd": {DefaultSGDConfig().LearningRate, func(lr float64) Optimizer {
		c := DefaultSGDConfig()
		c.LearningRate = lr
		return NewSGDOptimizer(c)
	}},
	"rmsprop": {DefaultRMSPropConfig().LearningRate, func(lr float64) Optimizer {
		c := DefaultRMSPropConfig()
		c.LearningRate = lr
		return NewRMSPropOptimizer(c)
	}},
	"adagrad": {DefaultAdaGradConfig().LearningRate, func(lr float64) Optimizer {
		c := DefaultAdaGradConfig()
		c.LearningRate = lr
		return NewAdaGradOptimizer(c)
	}},
	"adadelta": {DefaultAdaDeltaConfig().LearningRate, func(lr float64) Optimizer {
		c := DefaultAdaDeltaConfig()
		c.LearningRate = lr
		return NewAdaDeltaOptimizer(c)
	}},
	"adam": {DefaultAdamConfig().LearningRate, func(lr float64) Optimizer {
		c := DefaultAdamConfig()
		c.LearningRate = lr
		return NewAdamOptimizer(c)
	}},
	"adamax": {DefaultAdamaxConfig().LearningRate, func(lr float64) Optimizer {
		c := DefaultAdamaxConfig()
		c.LearningRate = lr
		return NewAdamaxOptimizer(c)
	}},
	"nadam": {DefaultNadamConfig().LearningRate, func(lr float64) Optimizer {
		c := DefaultNadamConfig()
		c.LearningRate = lr
		return NewNadamOptimizer(c)
	}},
}

// Canonical returns the registry name for an optimizer name. Lookups are
// case-insensitive, so "Adam" and "ADAM" both resolve to "adam".
func Canonical(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsRegistered reports whether name refers to a known optimizer
func IsRegistered(name string) bool {
	_, ok := registry[Canonical(name)]
	return ok
}

// Names returns the sorted list of registered optimizer names
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultLearningRate returns the default learning rate of the named optimizer
func DefaultLearningRate(name string) (float64, error) {
	reg, ok := registry[Canonical(name)]
	if !ok {
		return 0, fmt.Errorf("unknown optimizer %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return reg.defaultLR, nil
}

// New creates the named optimizer. lr <= 0 uses the optimizer's default
// learning rate.
func New(name string, lr float64) (Optimizer, error) {
	reg, ok := registry[Canonical(name)]
	if !ok {
		return nil, fmt.Errorf("unknown optimizer %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	if lr <= 0 {
		lr = reg.defaultLR
	}
	return reg.create(lr), nil
}

// slotState holds per-parameter accumulator slices, allocated on first use.
type slotState struct {
	slots [][][]float64 // [slot][param][element]
}

func newSlotState(numSlots int) slotState {
	return slotState{slots: make([][][]float64, numSlots)}
}

// ensure allocates the accumulators for params, or validates that params
// still match the shapes seen on the first step.
func (s *slotState) ensure(params []*Param) error {
	for i, p := range params {
		if len(p.Value) != len(p.Grad) {
			return fmt.Errorf("parameter %d (%s): value length %d != grad length %d", i, p.Name, len(p.Value), len(p.Grad))
		}
	}
	if s.slots[0] == nil {
		for k := range s.slots {
			s.slots[k] = make([][]float64, len(params))
			for i, p := range params {
				s.slots[k][i] = make([]float64, len(p.Value))
			}
		}
		return nil
	}
	if len(s.slots[0]) != len(params) {
		return fmt.Errorf("parameter count changed: expected %d, got %d", len(s.slots[0]), len(params))
	}
	for i, p := range params {
		if len(s.slots[0][i]) != len(p.Value) {
			return fmt.Errorf("parameter %d (%s) changed size: expected %d, got %d", i, p.Name, len(s.slots[0][i]), len(p.Value))
		}
	}
	return nil
}

// fill sets every element of one slot to v. Used for accumulators that
// start from a non-zero value.
func (s *slotState) fill(slot int, v float64) {
	for _, buf := range s.slots[slot] {
		for i := range buf {
			buf[i] = v
		}
	}
}
