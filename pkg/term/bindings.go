package term

// bindingScanThreshold is the number of entries past which Bindings grows
// an auxiliary hash index alongside the ordered slice. Below it, linear
// scan is faster than a map lookup for the small binding sets typical of
// a single rule match.
const bindingScanThreshold = 8

type bindingEntry struct {
	name string
	val  Value
}

// Bindings is a small ordered map from variable name (including its
// prefix, e.g. "$x") to the value it is bound to. Entries preserve
// insertion order so that left-to-right composition and iteration are
// deterministic.
type Bindings struct {
	entries []bindingEntry
	index   map[string]int // name -> position in entries, built lazily
}

// NewBindings returns an empty binding set.
func NewBindings() *Bindings { return &Bindings{} }

func (b *Bindings) buildIndex() {
	if b.index != nil || len(b.entries) <= bindingScanThreshold {
		return
	}
	b.index = make(map[string]int, len(b.entries))
	for i, e := range b.entries {
		b.index[e.name] = i
	}
}

// Lookup returns the value bound to name and true, or (nil, false) if
// name is unbound.
func (b *Bindings) Lookup(name string) (Value, bool) {
	if b == nil {
		return nil, false
	}
	b.buildIndex()
	if b.index != nil {
		if i, ok := b.index[name]; ok {
			return b.entries[i].val, true
		}
		return nil, false
	}
	for _, e := range b.entries {
		if e.name == name {
			return e.val, true
		}
	}
	return nil, false
}

// Clone returns a shallow copy whose entries slice is independent of the
// receiver (values themselves are immutable and shared).
func (b *Bindings) Clone() *Bindings {
	if b == nil {
		return NewBindings()
	}
	entries := make([]bindingEntry, len(b.entries))
	copy(entries, b.entries)
	return &Bindings{entries: entries}
}

// With returns a new Bindings with name bound to val. If name is already
// bound to a structurally different value, it returns (nil, false): a
// conflicting rebinding fails the match/unification that requested it.
// Rebinding to an equal value is a no-op that succeeds.
func (b *Bindings) With(name string, val Value) (*Bindings, bool) {
	if existing, ok := b.Lookup(name); ok {
		if !existing.Equal(val) {
			return nil, false
		}
		return b, true
	}
	next := b.Clone()
	next.entries = append(next.entries, bindingEntry{name: name, val: val})
	return next, true
}

// Merge composes two binding sets left-to-right: every entry of other is
// folded into b via With, failing the whole merge on the first conflict.
func (b *Bindings) Merge(other *Bindings) (*Bindings, bool) {
	result := b
	if result == nil {
		result = NewBindings()
	}
	if other == nil {
		return result, true
	}
	ok := true
	for _, e := range other.entries {
		result, ok = result.With(e.name, e.val)
		if !ok {
			return nil, false
		}
	}
	return result, true
}

// Names returns the bound variable names in insertion order.
func (b *Bindings) Names() []string {
	if b == nil {
		return nil
	}
	names := make([]string, len(b.entries))
	for i, e := range b.entries {
		names[i] = e.name
	}
	return names
}

// Len returns the number of bindings.
func (b *Bindings) Len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}

// ApplyBindings recursively substitutes bound variables in template with
// their values. A variable absent from b is left as-is, which is what
// lets rule bodies be partially evaluated before all of their free
// variables are known.
func ApplyBindings(tmpl Value, b *Bindings) Value {
	switch v := tmpl.(type) {
	case Atom:
		if v.IsVariable() && !v.IsWildcard() {
			if bound, ok := b.Lookup(string(v)); ok {
				return bound
			}
		}
		return v
	case SExpr:
		elems := make([]Value, len(v.Elems))
		for i, e := range v.Elems {
			elems[i] = ApplyBindings(e, b)
		}
		return SExpr{Elems: elems}
	case Quoted:
		return Quoted{Of: ApplyBindings(v.Of, b)}
	case Conjunction:
		goals := make([]Value, len(v.Goals))
		for i, g := range v.Goals {
			goals[i] = ApplyBindings(g, b)
		}
		return Conjunction{Goals: goals}
	case Type:
		return Type{Of: ApplyBindings(v.Of, b)}
	default:
		return tmpl
	}
}
