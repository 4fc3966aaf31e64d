package pool

import (
	"cosmossdk.io/log"

	"sweepchain/internal/state"
)

// Keeper executes pool operations against a State handed in by the caller.
// It holds no pool data itself: the storage stays with the State, and the
// behavior is resolved per call from the implementation slot stored there.
type Keeper struct {
	registry *Registry
	logger   log.Logger
}

func NewKeeper(registry *Registry, logger log.Logger) Keeper {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return Keeper{
		registry: registry,
		logger:   logger.With("module", "x/"+ModuleName),
	}
}

func (k Keeper) Logger() log.Logger { return k.logger }

func (k Keeper) Registry() *Registry { return k.registry }

// ActiveLogic resolves the implementation bound to the pool storage.
func (k Keeper) ActiveLogic(p *state.PoolState) (Logic, error) {
	if p == nil || !p.Initialized {
		return nil, ErrNotInitialized
	}
	return k.registry.Lookup(p.Implementation)
}
