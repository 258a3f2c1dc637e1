package strategy

import (
	"github.com/pegaltier/backtest-kit/internal/frame"
	"github.com/pegaltier/backtest-kit/internal/registry"
	"github.com/pegaltier/backtest-kit/internal/risk"
	"github.com/pegaltier/backtest-kit/internal/signal"
)

// Catalog interns strategy functions, frames, and risk profiles by name,
// replacing a package-level global map with an explicit object threaded
// through cmd/backtest and cmd/live (§9 design note).
type Catalog struct {
	strategies   *registry.Registry[signal.StrategyFunc]
	frames       *registry.Registry[frame.Frame]
	riskProfiles *registry.Registry[RiskProfileDef]
}

// NewCatalog builds an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		strategies:   registry.New[signal.StrategyFunc](),
		frames:       registry.New[frame.Frame](),
		riskProfiles: registry.New[RiskProfileDef](),
	}
}

// RegisterStrategy interns a strategy function under name.
func (c *Catalog) RegisterStrategy(name string, fn signal.StrategyFunc) error {
	return c.strategies.Register(name, fn)
}

// Strategy looks up a strategy function by name.
func (c *Catalog) Strategy(name string) (signal.StrategyFunc, error) {
	return c.strategies.Get(name)
}

// RegisterFrame interns a frame under its own name.
func (c *Catalog) RegisterFrame(f frame.Frame) error {
	return c.frames.Register(f.FrameName, f)
}

// Frame looks up a frame by name.
func (c *Catalog) Frame(name string) (frame.Frame, error) {
	return c.frames.Get(name)
}

// RegisterRiskProfile interns a risk profile definition under its own name.
func (c *Catalog) RegisterRiskProfile(def RiskProfileDef) error {
	if err := def.Validate(); err != nil {
		return err
	}
	return c.riskProfiles.Register(def.Name, def)
}

// RiskProfile looks up a risk profile definition by name.
func (c *Catalog) RiskProfile(name string) (RiskProfileDef, error) {
	return c.riskProfiles.Get(name)
}

// ApplyRiskProfile registers the named risk profile's predicates onto gate,
// so that risk.Gate.Check(name, ctx) enforces it. A MaxActivePositions <= 0
// profile still registers (as a no-op predicate), making the registration
// idempotent and explicit rather than relying on Gate's implicit "no
// profile registered" default.
func (c *Catalog) ApplyRiskProfile(gate *risk.Gate, name string) error {
	def, err := c.RiskProfile(name)
	if err != nil {
		return err
	}
	gate.Register(name, maxActivePositionsPredicate(def.MaxActivePositions))
	return nil
}

func maxActivePositionsPredicate(max int) risk.Predicate {
	return func(ctx risk.Context) error {
		if max <= 0 {
			return nil
		}
		if ctx.ActivePositionCount >= max {
			return &risk.ErrRejected{Reason: "max active positions reached"}
		}
		return nil
	}
}
