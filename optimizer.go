package plant_gan

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// LearningRate Mutable learning rate. Optimizer reads it on every step, so schedules (decay) could change it between steps.
type LearningRate struct {
	value float64
}

// NewLearningRate Constructor for LearningRate
func NewLearningRate(value float64) *LearningRate {
	return &LearningRate{value: value}
}

// Get Returns current value
func (lr *LearningRate) Get() float64 {
	return lr.value
}

// Set Replaces current value
func (lr *LearningRate) Set(value float64) {
	lr.value = value
}

// Scale Multiplies current value by factor and returns new value
func (lr *LearningRate) Scale(factor float64) float64 {
	lr.value *= factor
	return lr.value
}

// Optimizer Plain gradient descent over fixed set of learnables: w := w - lr*dw
type Optimizer struct {
	rate   *LearningRate
	params ParamSet
}

// NewOptimizer Constructor for Optimizer
//
// rate - learning rate holder
// params - learnables which will be updated. Those should be bound as dual values in tape machine
//
func NewOptimizer(rate *LearningRate, params ParamSet) *Optimizer {
	return &Optimizer{
		rate:   rate,
		params: params,
	}
}

// Rate Returns learning rate holder
func (opt *Optimizer) Rate() *LearningRate {
	return opt.rate
}

// Step Applies gradients which were computed by last run of tape machine
func (opt *Optimizer) Step() error {
	solver := gorgonia.NewVanillaSolver(gorgonia.WithLearnRate(opt.rate.Get()))
	if err := solver.Step(gorgonia.NodesToValueGrads(opt.params.Nodes())); err != nil {
		return errors.Wrap(err, "Can't do gradient descent step for '"+opt.params.Name+"'")
	}
	return nil
}
