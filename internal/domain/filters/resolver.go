package filters

// Ticket identifies one scoped option request. Generation is the value of the
// dependent field's request counter when the request was issued.
type Ticket struct {
	Chain      Chain
	Governing  string
	Generation uint64
}

// Resolver owns the dependent option lists. Every resolution, synchronous or
// not, advances the dependent field's generation counter, and an asynchronous
// result is only applied if its ticket still carries the latest generation.
type Resolver struct {
	lists       map[Field]OptionList
	generations map[Field]uint64
	pending     map[Field]uint64
}

// NewResolver creates a resolver whose dependent lists start at ["all"].
func NewResolver(chains []Chain) *Resolver {
	r := &Resolver{
		lists:       make(map[Field]OptionList, len(chains)),
		generations: make(map[Field]uint64, len(chains)),
		pending:     make(map[Field]uint64),
	}
	for _, c := range chains {
		r.lists[c.Dependent] = DefaultOptionList()
	}
	return r
}

// Options returns the current list for a dependent field.
func (r *Resolver) Options(dependent Field) OptionList {
	if list, ok := r.lists[dependent]; ok {
		return list.clone()
	}
	return DefaultOptionList()
}

// Generation returns the latest issued generation for a dependent field.
func (r *Resolver) Generation(dependent Field) uint64 {
	return r.generations[dependent]
}

// Pending reports whether a scoped request for the field is still outstanding.
func (r *Resolver) Pending(dependent Field) bool {
	_, ok := r.pending[dependent]
	return ok
}

// ResolveWildcard applies the unfiltered metadata list without a request.
// Any outstanding request for the field becomes stale.
func (r *Resolver) ResolveWildcard(c Chain, md *Metadata) OptionList {
	r.generations[c.Dependent]++
	delete(r.pending, c.Dependent)
	list := Fallback(c, md)
	r.lists[c.Dependent] = list
	return list.clone()
}

// Issue records a new scoped request for a concrete governing value.
func (r *Resolver) Issue(c Chain, governing string) Ticket {
	r.generations[c.Dependent]++
	gen := r.generations[c.Dependent]
	r.pending[c.Dependent] = gen
	return Ticket{Chain: c, Governing: governing, Generation: gen}
}

// Current reports whether the ticket is still the latest for its field.
func (r *Resolver) Current(t Ticket) bool {
	return r.generations[t.Chain.Dependent] == t.Generation
}

// Commit applies a resolved list. It returns false, leaving the current list
// untouched, when a newer request has been issued since the ticket.
func (r *Resolver) Commit(t Ticket, list OptionList) bool {
	if !r.Current(t) {
		return false
	}
	if list == nil {
		list = DefaultOptionList()
	}
	r.lists[t.Chain.Dependent] = list.clone()
	delete(r.pending, t.Chain.Dependent)
	return true
}

// Fallback is the list used when scoped resolution is not possible: the
// dependent field's full metadata list behind the wildcard.
func Fallback(c Chain, md *Metadata) OptionList {
	return NewOptionList(md.ListFor(c.Dependent))
}
