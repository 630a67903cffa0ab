// Package optimize implements the fixed-point optimization pipeline and
// the VM legalizer (spec §4.7), grounded on the pass-manager shape of
// _examples/other_examples kanso-lang's internal/ir/optimizations.go
// (OptimizationPass/OptimizationPipeline), generalized here to support
// running a pass to a fixed point rather than just once.
package optimize

import (
	"github.com/cairo-m/cairom/internal/cairom/mir"
	"github.com/cairo-m/cairom/internal/cairom/utils"
)

// Pass is one optimization pass over a function.
type Pass interface {
	Name() string
	// Run mutates fn in place and reports whether it changed anything, so
	// the fixed-point driver knows whether another iteration is needed.
	Run(fn *mir.Function) bool
}

// Mode selects whether a pass runs once or is iterated to a fixed point.
type Mode int

const (
	RunOnce Mode = iota
	RunToFixedPoint
)

type scheduled struct {
	pass Pass
	mode Mode
}

// DefaultMaxIterations caps the fixed-point loop, overridable by the
// CAIRO_M_MAX_PASSES environment variable (spec §6).
const DefaultMaxIterations = 8

// PassManager runs a configured sequence of passes over every function in
// a module.
type PassManager struct {
	scheduled []scheduled
	maxIters  int
	disabled  map[string]bool
}

// NewPassManager builds the standard pipeline: ConstantFold, AggregateFold,
// ArithSimplify, CopyPropagation, and BranchSimplify run to a fixed point;
// PhiElimination runs exactly once afterward (spec §4.7).
func NewPassManager() *PassManager {
	return NewPassManagerWithConfig(utils.FromEnv())
}

// NewPassManagerWithConfig builds the standard pipeline using an
// explicit Config instead of reading the environment directly, so a
// caller that already parsed a Config (the top-level Compile pipeline)
// doesn't pay for a second os.Getenv pass.
func NewPassManagerWithConfig(cfg *utils.Config) *PassManager {
	pm := &PassManager{maxIters: cfg.MaxPasses, disabled: cfg.DisabledSet()}
	pm.addFixedPoint(&ConstantFold{})
	pm.addFixedPoint(&AggregateFold{})
	pm.addFixedPoint(&ArithSimplify{})
	pm.addFixedPoint(&CopyPropagation{})
	pm.addFixedPoint(&BranchSimplify{})
	pm.addOnce(&PhiElimination{})
	return pm
}

func (pm *PassManager) addFixedPoint(p Pass) { pm.scheduled = append(pm.scheduled, scheduled{p, RunToFixedPoint}) }
func (pm *PassManager) addOnce(p Pass)       { pm.scheduled = append(pm.scheduled, scheduled{p, RunOnce}) }

// Run applies every scheduled pass, in order, to every function of mod.
func (pm *PassManager) Run(mod *mir.Module) {
	for _, fn := range mod.Functions {
		for _, s := range pm.scheduled {
			if pm.disabled[s.pass.Name()] {
				continue
			}
			switch s.mode {
			case RunOnce:
				s.pass.Run(fn)
			case RunToFixedPoint:
				for i := 0; i < pm.maxIters; i++ {
					if !s.pass.Run(fn) {
						break
					}
				}
			}
		}
	}
}
