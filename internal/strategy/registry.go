package strategy

import (
	"encoding/json"

	"github.com/yanun0323/errors"
)

// Factory builds a strategy instance from raw JSON parameters.
type Factory func(params json.RawMessage) (Strategy, error)

// Registry maps strategy names to factories. It is populated at startup
// and read-only afterwards; no global registry exists.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry with the built-in strategies installed.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("median_cross", func(params json.RawMessage) (Strategy, error) {
		return NewMedianCrossFromJSON(params)
	})
	r.Register("sma_cross", func(params json.RawMessage) (Strategy, error) {
		return NewSMACrossFromJSON(params)
	})
	return r
}

// Register installs a factory under a name, replacing any previous one.
func (r *Registry) Register(name string, factory Factory) {
	r.factories[name] = factory
}

// New builds the named strategy.
func (r *Registry) New(name string, params json.RawMessage) (Strategy, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, errors.Errorf("unknown strategy: %s", name)
	}
	s, err := factory(params)
	if err != nil {
		return nil, errors.Wrap(err, "build strategy").With("name", name)
	}
	return s, nil
}

// Names returns the registered strategy names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
