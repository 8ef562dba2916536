package filters

// PolicyState is the lifecycle state of an invalidation policy.
type PolicyState int

const (
	PolicyUninitialized PolicyState = iota
	PolicyStable
)

func (s PolicyState) String() string {
	switch s {
	case PolicyUninitialized:
		return "uninitialized"
	case PolicyStable:
		return "stable"
	}
	return "unknown"
}

// Decision is the outcome of one policy evaluation.
type Decision struct {
	// Evaluated is false when a precondition short-circuited the check.
	Evaluated bool
	Reset     bool
	Previous  string
	Governing string
	Dependent string
}

// Policy keeps one dependent selection consistent with its governing field.
// previousGoverning is read and written in the same Evaluate call.
type Policy struct {
	chain             Chain
	state             PolicyState
	previousGoverning string
}

// NewPolicy creates an uninitialized policy for the chain.
func NewPolicy(c Chain) *Policy {
	return &Policy{chain: c}
}

// Chain returns the chain the policy guards.
func (p *Policy) Chain() Chain { return p.chain }

// State returns the lifecycle state.
func (p *Policy) State() PolicyState { return p.state }

// PreviousGoverning returns the governing value seen at the last evaluation.
func (p *Policy) PreviousGoverning() string { return p.previousGoverning }

// Mount records the initial governing value without evaluating. Only the
// first call has an effect.
func (p *Policy) Mount(governing string) bool {
	if p.state != PolicyUninitialized {
		return false
	}
	p.previousGoverning = governing
	p.state = PolicyStable
	return true
}

// Evaluate decides whether the dependent value must fall back to the wildcard.
// A reset requires a real governing transition to a concrete value, a concrete
// dependent value, and a populated option list that does not contain it.
// An unpopulated list never causes a reset. The governing value is recorded
// as previous whatever the outcome.
func (p *Policy) Evaluate(governing, dependent string, options OptionList) Decision {
	if p.Mount(governing) {
		return Decision{Previous: governing, Governing: governing, Dependent: dependent}
	}

	d := Decision{Previous: p.previousGoverning, Governing: governing, Dependent: dependent}
	p.previousGoverning = governing

	switch {
	case governing == d.Previous:
		return d
	case governing == Wildcard || dependent == Wildcard:
		return d
	case !options.Populated():
		return d
	}

	d.Evaluated = true
	valid := make(map[string]struct{}, len(options))
	for _, v := range options.Concrete() {
		valid[v] = struct{}{}
	}
	if _, ok := valid[dependent]; !ok {
		d.Reset = true
	}
	return d
}
