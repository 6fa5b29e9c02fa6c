package backtest

// DefaultMaxCombinations caps the parameter grid size unless configured
// otherwise. An optimization over a larger space fails fast instead of
// launching a runaway search.
const DefaultMaxCombinations = 10000

// ParameterRange describes the values one parameter sweeps over: either an
// inclusive numeric range {Min, Max, Step} or an explicit list of discrete
// Values. Values takes precedence when non-empty.
type ParameterRange struct {
	Min    float64       `json:"min"`
	Max    float64       `json:"max"`
	Step   float64       `json:"step"`
	Values []interface{} `json:"values,omitempty"`
}

// ParameterSpec names one swept parameter. Spec order determines
// combination order: the first spec varies slowest.
type ParameterSpec struct {
	Name  string         `json:"name"`
	Range ParameterRange `json:"range"`
}

// ParameterGrid is the expanded Cartesian product of a set of parameter
// specs. Combinations are produced in deterministic lexicographic order and
// the grid can be re-walked any number of times.
type ParameterGrid struct {
	names  []string
	values [][]interface{}
	total  int
}

// NewParameterGrid expands the specs into a grid. The total combination
// count is computed up front; if it exceeds maxCombinations (or
// DefaultMaxCombinations when maxCombinations is not positive) the grid is
// rejected before producing any values.
func NewParameterGrid(specs []ParameterSpec, maxCombinations int) (*ParameterGrid, error) {
	if len(specs) == 0 {
		return nil, NewConfigurationError("at least one parameter range is required")
	}
	if maxCombinations <= 0 {
		maxCombinations = DefaultMaxCombinations
	}

	grid := &ParameterGrid{total: 1}
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, NewConfigurationError("parameter name must not be empty")
		}
		expanded, err := expandRange(spec)
		if err != nil {
			return nil, err
		}
		grid.names = append(grid.names, spec.Name)
		grid.values = append(grid.values, expanded)
		grid.total *= len(expanded)
		if grid.total > maxCombinations {
			return nil, NewConfigurationError("parameter space has more than %d combinations", maxCombinations)
		}
	}
	return grid, nil
}

// Total returns the number of combinations in the grid.
func (g *ParameterGrid) Total() int {
	return g.total
}

// At returns combination i in lexicographic order, as a fresh map.
func (g *ParameterGrid) At(i int) map[string]interface{} {
	combo := make(map[string]interface{}, len(g.names))
	for k := len(g.names) - 1; k >= 0; k-- {
		n := len(g.values[k])
		combo[g.names[k]] = g.values[k][i%n]
		i /= n
	}
	return combo
}

// Names returns the parameter names in spec order.
func (g *ParameterGrid) Names() []string {
	return g.names
}

// expandRange materializes the concrete values of one parameter. Numeric
// ranges include Max only when it is reachable by a whole number of steps.
func expandRange(spec ParameterSpec) ([]interface{}, error) {
	r := spec.Range
	if len(r.Values) > 0 {
		return r.Values, nil
	}
	if r.Step <= 0 {
		return nil, NewConfigurationError("parameter %q: step must be positive, got %v", spec.Name, r.Step)
	}
	if r.Max < r.Min {
		return nil, NewConfigurationError("parameter %q: max %v is below min %v", spec.Name, r.Max, r.Min)
	}

	// Tolerate float error when Max lands exactly on a step boundary.
	count := int((r.Max-r.Min)/r.Step+1e-9) + 1
	values := make([]interface{}, 0, count)
	for i := 0; i < count; i++ {
		values = append(values, r.Min+float64(i)*r.Step)
	}
	return values, nil
}
