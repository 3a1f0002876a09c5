package ingest

import "fmt"

// StrategyFactory maps strategy IDs (from sources.yaml) to implementations.
type StrategyFactory struct {
	strategies map[string]Strategy
}

func NewStrategyFactory() *StrategyFactory {
	return &StrategyFactory{strategies: make(map[string]Strategy)}
}

func (f *StrategyFactory) Register(id string, strategy Strategy) {
	f.strategies[id] = strategy
}

func (f *StrategyFactory) Get(id string) (Strategy, error) {
	strategy, ok := f.strategies[id]
	if !ok {
		return nil, fmt.Errorf("strategy not found: %s", id)
	}
	return strategy, nil
}

// DefaultFactory returns a factory with all built-in strategies registered.
func DefaultFactory() *StrategyFactory {
	f := NewStrategyFactory()
	f.Register("api_sam_gov", &SAMGovStrategy{})
	f.Register("api_world_bank", &WorldBankStrategy{})
	f.Register("html_listing", &HTMLListingStrategy{})
	return f
}
