// Package env implements the Environment of §3: the copy-on-write
// container that threads the self space, named spaces, state cells, the
// tokenizer table, and the external-function registry through a VM run.
package env

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/mettalang/mork/pkg/space"
	"github.com/mettalang/mork/pkg/term"
)

// ExternalFunc is a host-registered function reachable from compiled
// code via CallExternal (§6).
type ExternalFunc func(args []term.Value, ctx *Environment) ([]term.Value, error)

var nextHandle uint64

func newHandle() uint64 { return atomic.AddUint64(&nextHandle, 1) }

// spaceTable is the persistent name -> *space.Space map shared
// copy-on-write across forks, mirroring the rule-bucket sharing inside
// package space itself.
type spaceTable struct {
	byName map[string]*space.Space
}

func (t *spaceTable) clone() *spaceTable {
	next := make(map[string]*space.Space, len(t.byName))
	for k, v := range t.byName {
		next[k] = v
	}
	return &spaceTable{byName: next}
}

// stateTable is the persistent id -> current value map backing State
// cells.
type stateTable struct {
	cells map[uint64]term.Value
}

func (t *stateTable) clone() *stateTable {
	next := make(map[uint64]term.Value, len(t.cells))
	for k, v := range t.cells {
		next[k] = v
	}
	return &stateTable{cells: next}
}

// tokenTable maps a symbol to a replacement value substituted in before
// evaluation (§3).
type tokenTable struct {
	replacements map[string]term.Value
}

func (t *tokenTable) clone() *tokenTable {
	next := make(map[string]term.Value, len(t.replacements))
	for k, v := range t.replacements {
		next[k] = v
	}
	return &tokenTable{replacements: next}
}

// externalTable holds host-registered functions, keyed by name.
type externalTable struct {
	funcs map[string]ExternalFunc
}

func (t *externalTable) clone() *externalTable {
	next := make(map[string]ExternalFunc, len(t.funcs))
	for k, v := range t.funcs {
		next[k] = v
	}
	return &externalTable{funcs: next}
}

// Environment bundles everything a compiled chunk needs beyond its own
// bytecode: the self space, every named space, state cells, tokenizer
// replacements, and external functions. Fork produces a logically
// independent environment whose unchanged sub-tables are still shared by
// reference; the first mutation on either side clones just that table.
type Environment struct {
	mu       sync.RWMutex
	self     *space.Space
	spaces   *spaceTable
	state    *stateTable
	tokens   *tokenTable
	external *externalTable
}

// New returns a fresh environment with an empty self space.
func New() *Environment {
	return &Environment{
		self:     space.New(),
		spaces:   &spaceTable{byName: make(map[string]*space.Space)},
		state:    &stateTable{cells: make(map[uint64]term.Value)},
		tokens:   &tokenTable{replacements: make(map[string]term.Value)},
		external: &externalTable{funcs: make(map[string]ExternalFunc)},
	}
}

// Fork produces an environment for one branch of a nondeterministic
// evaluation. It is O(1) plus the cost of cloning the self space's
// top-level bucket map (see space.Space.Clone); named spaces, state, and
// tokens are shared until a mutation on this branch touches them.
func (e *Environment) Fork() *Environment {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &Environment{
		self:     e.self.Clone(),
		spaces:   e.spaces,
		state:    e.state,
		tokens:   e.tokens,
		external: e.external,
	}
}

// Self returns the implicit module-scope space (&self in surface
// syntax).
func (e *Environment) Self() *space.Space {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.self
}

// NewSpace creates and registers a new named space, returning its handle
// value and the underlying store. An empty name auto-generates one.
func (e *Environment) NewSpace(name string) (term.Space, *space.Space) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sp := space.New()
	handle := newHandle()
	if name == "" {
		name = "space#" + strconv.FormatUint(handle, 10)
	}
	e.spaces = e.spaces.clone()
	e.spaces.byName[name] = sp
	e.bindHandle(handle, name)
	return term.Space{Handle: handle}, sp
}

// handleNames tracks handle -> registration name so that a
// term.Space value (just a numeric handle) can be resolved back to its
// store. Kept separate from spaceTable so Fork's table-sharing logic
// above stays about spaces, not this bookkeeping.
var handleNames sync.Map // uint64 -> string

func (e *Environment) bindHandle(handle uint64, name string) {
	handleNames.Store(handle, name)
}

func handleName(h uint64) string {
	if n, ok := handleNames.Load(h); ok {
		return n.(string)
	}
	return ""
}

// SelfHandle returns the reserved handle value (0) denoting the implicit
// self space, the same store Self returns directly. It lets compiled
// code pass `&self` around as an ordinary term.Space value.
func (e *Environment) SelfHandle() term.Space { return term.Space{Handle: 0} }

// ResolveSpace returns the store backing a term.Space handle, or nil if
// unknown to this environment. Handle 0 always resolves to Self.
func (e *Environment) ResolveSpace(h term.Space) *space.Space {
	if h.Handle == 0 {
		return e.Self()
	}
	name, ok := handleNames.Load(h.Handle)
	if !ok {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.spaces.byName[name.(string)]
}

// NewState allocates a state cell holding the given initial value and
// returns its handle.
func (e *Environment) NewState(initial term.Value) term.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	handle := newHandle()
	e.state = e.state.clone()
	e.state.cells[handle] = initial
	return term.State{ID: handle}
}

// GetState returns the current value of a state cell.
func (e *Environment) GetState(s term.State) (term.Value, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.state.cells[s.ID]
	return v, ok
}

// ChangeState replaces the value of a state cell, returning false if the
// handle is unknown.
func (e *Environment) ChangeState(s term.State, next term.Value) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.state.cells[s.ID]; !ok {
		return false
	}
	e.state = e.state.clone()
	e.state.cells[s.ID] = next
	return true
}

// RegisterExternal adds a host function reachable from compiled code via
// CallExternal.
func (e *Environment) RegisterExternal(name string, fn ExternalFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.external = e.external.clone()
	e.external.funcs[name] = fn
}

// LookupExternal resolves a registered external function by name.
func (e *Environment) LookupExternal(name string) (ExternalFunc, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.external.funcs[name]
	return fn, ok
}

// SetToken installs a tokenizer replacement: the symbol `sym` evaluates
// to `val` before any other evaluation rule applies.
func (e *Environment) SetToken(sym string, val term.Value) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tokens = e.tokens.clone()
	e.tokens.replacements[sym] = val
}

// LookupToken resolves a tokenizer replacement.
func (e *Environment) LookupToken(sym string) (term.Value, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.tokens.replacements[sym]
	return v, ok
}
