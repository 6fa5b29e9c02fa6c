package strategy

import (
	"fmt"
	"sort"
)

// Factories maps strategy names to their constructors. The CLIs and the
// scheduler resolve configured strategies through this table.
var Factories = map[string]Factory{
	"sma_cross": NewSMACross,
	"buy_hold":  NewBuyHold,
}

// New builds a named strategy from a parameter map.
func New(name string, params map[string]interface{}) (Strategy, error) {
	factory, ok := Factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
	return factory(params)
}

// FactoryFor returns the constructor for a named strategy.
func FactoryFor(name string) (Factory, error) {
	factory, ok := Factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
	return factory, nil
}

// sortedSymbols returns map keys in lexical order so that signal emission
// order is deterministic across runs.
func sortedSymbols[V any](m map[string]V) []string {
	symbols := make([]string, 0, len(m))
	for symbol := range m {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
