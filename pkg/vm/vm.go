// Package vm implements the stack-based bytecode interpreter of §4.4:
// four stacks (value, call, binding, choice-point), iterative
// backtracking, and the opcode dispatch loop that drives rule calls
// through the bridge.
package vm

import (
	"context"
	"fmt"

	"github.com/mettalang/mork/pkg/bytecode"
	"github.com/mettalang/mork/pkg/env"
	"github.com/mettalang/mork/pkg/term"
)

// RuleMatch is one candidate rule body ready to run, as returned by a
// Bridge: the compiled RHS chunk plus the bindings produced by matching
// the call term's LHS.
type RuleMatch struct {
	Chunk    *bytecode.Chunk
	Bindings *term.Bindings
}

// Bridge mediates between the VM and the rule store (§4.5). The VM
// depends only on this interface so that package bridge can depend on
// package vm's types without an import cycle.
type Bridge interface {
	Dispatch(callTerm term.Value) ([]RuleMatch, error)
}

// FatalError is an engine-fatal condition (§7): invalid bytecode,
// out-of-bounds access, or stack exhaustion. The host should treat it as
// a failed invocation, never as a catchable program value.
type FatalError struct {
	Msg string
}

func (e *FatalError) Error() string { return "mork vm: " + e.Msg }

func fatalf(format string, args ...any) error {
	return &FatalError{Msg: fmt.Sprintf(format, args...)}
}

// Config bounds evaluation per §4.4's cancellation/limits rule. The
// Println and Trace fields are not read by the VM; package builtin's
// println!/trace! write to stdout and to its own trace writer.
type Config struct {
	MaxDepth      int
	MaxCartesian  int
	MaxValueStack int
	MaxCallStack  int
	CacheSize     int
	Println       func(string)
	Trace         func(string)

	// MultiResultExternalAsList resolves the §9 open question on how
	// CallExternal should surface a host function that returns several
	// values: true bundles them into one SExpr, false forks a choice
	// point over them like any nondeterministic call.
	MultiResultExternalAsList bool
}

// DefaultConfig returns the engine's default limits.
func DefaultConfig() Config {
	return Config{
		MaxDepth:      10_000,
		MaxCartesian:  10_000,
		MaxValueStack: 1 << 20,
		MaxCallStack:  1 << 16,
		CacheSize:     4096,
	}
}

type frame struct {
	returnIP     int
	returnChunk  *bytecode.Chunk
	basePtr      int
	bindingsBase int
}

// Alt is one backtracking alternative captured in a ChoicePoint.
type Alt struct {
	Value    term.Value      // Alt(Value): push this term and continue
	Chunk    *bytecode.Chunk // Alt(Chunk): switch to running this chunk
	IsRule   bool            // Alt(RuleMatch): run Chunk as a rule body with Bindings
	Bindings *term.Bindings
}

type choicePoint struct {
	valueHeight    int
	callHeight     int
	bindingsHeight int
	resumeIP       int
	chunk          *bytecode.Chunk
	alternatives   []Alt
}

// VM interprets a single chunk to completion, returning every result
// produced (possibly more than one, via choice points) or a fatal error.
// A VM instance is not reused across runs; construct a fresh one per
// Run call via New.
type VM struct {
	cfg    Config
	env    *env.Environment
	bridge Bridge

	chunk *bytecode.Chunk
	ip    int

	values   []term.Value
	calls    []frame
	bindings []*term.Bindings
	choices  []choicePoint
	// locals holds one slice per active frame (plus the base, top-level
	// frame), sized to that chunk's LocalCount; LoadLocal/StoreLocal index
	// into locals[len(locals)-1]. Kept separate from the value stack so a
	// frame's working stack and its let/parameter slots never collide.
	locals [][]term.Value

	results []term.Value
	cache   *lru

	depth int
}

// New constructs a VM bound to an environment and rule-dispatch bridge.
func New(e *env.Environment, b Bridge, cfg Config) *VM {
	return &VM{
		cfg:      cfg,
		env:      e,
		bridge:   b,
		bindings: []*term.Bindings{term.NewBindings()},
		cache:    newLRU(cfg.CacheSize),
	}
}

// Env returns the environment this VM is bound to.
func (m *VM) Env() *env.Environment { return m.env }

func (m *VM) curBindings() *term.Bindings {
	return m.bindings[len(m.bindings)-1]
}

func (m *VM) pushBindingFrame(b *term.Bindings) {
	if b == nil {
		b = term.NewBindings()
	}
	m.bindings = append(m.bindings, b)
}

func (m *VM) popBindingFrame() error {
	if len(m.bindings) <= 1 {
		return fatalf("binding stack underflow")
	}
	m.bindings = m.bindings[:len(m.bindings)-1]
	return nil
}

func (m *VM) push(v term.Value) error {
	if len(m.values) >= m.cfg.MaxValueStack {
		return fatalf("value stack overflow")
	}
	m.values = append(m.values, v)
	return nil
}

func (m *VM) pop() (term.Value, error) {
	if len(m.values) == 0 {
		return nil, fatalf("value stack underflow")
	}
	v := m.values[len(m.values)-1]
	m.values = m.values[:len(m.values)-1]
	return v, nil
}

func (m *VM) popN(n int) ([]term.Value, error) {
	if len(m.values) < n {
		return nil, fatalf("value stack underflow: need %d, have %d", n, len(m.values))
	}
	out := make([]term.Value, n)
	copy(out, m.values[len(m.values)-n:])
	m.values = m.values[:len(m.values)-n]
	return out, nil
}

func (m *VM) peek() (term.Value, error) {
	if len(m.values) == 0 {
		return nil, fatalf("value stack underflow")
	}
	return m.values[len(m.values)-1], nil
}

// Run interprets chunk to completion and returns every result the
// top-level frame produced. ctx is checked between instructions so a
// caller can cancel a runaway evaluation from the outside even though
// the core contract has no built-in wall-clock timeout (§5).
func (m *VM) Run(ctx context.Context, chunk *bytecode.Chunk) ([]term.Value, error) {
	m.chunk = chunk
	m.ip = 0
	m.calls = nil
	m.choices = nil
	m.results = nil
	m.locals = [][]term.Value{make([]term.Value, chunk.LocalCount)}
	m.depth = 0

	for {
		select {
		case <-ctx.Done():
			return m.results, ctx.Err()
		default:
		}

		if m.chunk == nil {
			break
		}
		done, err := m.step(ctx)
		if err != nil {
			if rec, ok := asRecoverable(err); ok {
				if !m.backtrack() {
					m.results = append(m.results, rec)
					break
				}
				continue
			}
			return m.results, err
		}
		if done {
			break
		}
	}
	return m.results, nil
}
