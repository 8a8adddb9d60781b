package schema

import "fmt"

// Registry stores instrument definitions. It is built once from config and
// passed explicitly to the components that need it.
type Registry struct {
	instruments []Instrument
	bySymbol    map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{bySymbol: make(map[string]int)}
}

// Add registers a new instrument.
func (r *Registry) Add(inst Instrument) error {
	if inst.Symbol == "" {
		return fmt.Errorf("instrument symbol is empty")
	}
	if inst.Kind == "" {
		return fmt.Errorf("instrument kind is empty for %s", inst.Symbol)
	}
	if _, ok := r.bySymbol[inst.Symbol]; ok {
		return fmt.Errorf("instrument already exists: %s", inst.Symbol)
	}
	r.bySymbol[inst.Symbol] = len(r.instruments)
	r.instruments = append(r.instruments, inst)
	return nil
}

// Instrument returns the instrument for a symbol.
func (r *Registry) Instrument(symbol string) (Instrument, bool) {
	idx, ok := r.bySymbol[symbol]
	if !ok {
		return Instrument{}, false
	}
	return r.instruments[idx], true
}

// Symbols returns all registered symbols in insertion order.
func (r *Registry) Symbols() []string {
	out := make([]string, 0, len(r.instruments))
	for _, inst := range r.instruments {
		out = append(out, inst.Symbol)
	}
	return out
}

// Count returns the number of registered instruments.
func (r *Registry) Count() int {
	return len(r.instruments)
}
