package vm_test

import (
	"context"
	"testing"

	"github.com/mettalang/mork/pkg/bridge"
	"github.com/mettalang/mork/pkg/bytecode"
	"github.com/mettalang/mork/pkg/env"
	"github.com/mettalang/mork/pkg/term"
	"github.com/mettalang/mork/pkg/vm"
)

func run(t *testing.T, e *env.Environment, br vm.Bridge, v term.Value) []term.Value {
	t.Helper()
	chunk, err := bytecode.New().Compile("test", v)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	m := vm.New(e, br, vm.DefaultConfig())
	results, err := m.Run(context.Background(), chunk)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return results
}

func TestArithmeticAtRuntime(t *testing.T) {
	e := env.New()
	br := bridge.New(e)
	// (+ $a 3) with $a free compiles to PushVariable, so drive it through
	// a rule body instead: evaluating (- 10 3) forces the runtime Sub
	// opcode rather than a folded constant, since the literals alone
	// would normally fold; pair with a variable to force the op.
	e.Self().AddRule(
		term.NewSExpr(term.Atom("delta"), term.Atom("$a"), term.Atom("$b")),
		term.NewSExpr(term.Atom("-"), term.Atom("$a"), term.Atom("$b")),
	)
	got := run(t, e, br, term.NewSExpr(term.Atom("delta"), term.Long(10), term.Long(3)))
	if len(got) != 1 || !got[0].Equal(term.Long(7)) {
		t.Errorf("delta(10,3) = %v, want [7]", got)
	}
}

func TestRuleDispatchWithSpecificityTieBreak(t *testing.T) {
	e := env.New()
	br := bridge.New(e)
	// Two overlapping rules: the concrete-literal one must win for input 0.
	e.Self().AddRule(
		term.NewSExpr(term.Atom("classify"), term.Long(0)),
		term.Atom("zero"),
	)
	e.Self().AddRule(
		term.NewSExpr(term.Atom("classify"), term.Atom("$x")),
		term.Atom("nonzero"),
	)

	got := run(t, e, br, term.NewSExpr(term.Atom("classify"), term.Long(0)))
	if len(got) != 1 || !got[0].Equal(term.Atom("zero")) {
		t.Errorf("classify(0) = %v, want [zero]", got)
	}

	got = run(t, e, br, term.NewSExpr(term.Atom("classify"), term.Long(5)))
	if len(got) != 1 || !got[0].Equal(term.Atom("nonzero")) {
		t.Errorf("classify(5) = %v, want [nonzero]", got)
	}
}

func TestRuleDispatchBindsPatternVariableAtRuntime(t *testing.T) {
	// Exercises the PushVariable runtime-binding-substitution path: the
	// same compiled chunk (cached across call sites) must substitute a
	// different value per invocation.
	e := env.New()
	br := bridge.New(e)
	e.Self().AddRule(
		term.NewSExpr(term.Atom("double"), term.Atom("$x")),
		term.NewSExpr(term.Atom("+"), term.Atom("$x"), term.Atom("$x")),
	)

	got := run(t, e, br, term.NewSExpr(term.Atom("double"), term.Long(5)))
	if len(got) != 1 || !got[0].Equal(term.Long(10)) {
		t.Errorf("double(5) = %v, want [10]", got)
	}

	got = run(t, e, br, term.NewSExpr(term.Atom("double"), term.Long(21)))
	if len(got) != 1 || !got[0].Equal(term.Long(42)) {
		t.Errorf("double(21) = %v, want [42]", got)
	}
}

func TestSuperposeCollapse(t *testing.T) {
	// invariant 4: collapse(superpose(xs)) recovers xs as a set (modulo
	// order).
	e := env.New()
	br := bridge.New(e)

	got := run(t, e, br, term.NewSExpr(
		term.Atom("collapse"),
		term.NewSExpr(term.Atom("superpose"),
			term.NewSExpr(term.Atom("$l"), term.Long(1), term.Long(2), term.Long(3))),
	))
	if len(got) != 1 {
		t.Fatalf("expected collapse to yield a single aggregate result, got %d", len(got))
	}
	s, ok := got[0].(term.SExpr)
	if !ok || len(s.Elems) != 3 {
		t.Fatalf("expected a 3-element collapsed list, got %v", got[0])
	}
}

func TestMatchAgainstSpaceFacts(t *testing.T) {
	e := env.New()
	br := bridge.New(e)
	e.Self().AddAtom(term.NewSExpr(term.Atom("parent"), term.Atom("Tom"), term.Atom("Bob")))
	e.Self().AddAtom(term.NewSExpr(term.Atom("parent"), term.Atom("Pam"), term.Atom("Bob")))

	got := run(t, e, br, term.NewSExpr(
		term.Atom("match"),
		term.Atom("&self"),
		term.NewSExpr(term.Atom("parent"), term.Atom("$p"), term.Atom("Bob")),
		term.Atom("$p"),
	))
	if len(got) == 0 {
		t.Fatal("expected at least one match result")
	}
}

func TestDivisionByZeroRaisesCatchableError(t *testing.T) {
	e := env.New()
	br := bridge.New(e)

	got := run(t, e, br, term.NewSExpr(
		term.Atom("catch"),
		term.NewSExpr(term.Atom("/"), term.Long(1), term.Long(0)),
		term.NewSExpr(term.Atom("$err"), term.NewSExpr(term.Atom("get-metatype"), term.Atom("$err"))),
	))
	if len(got) != 1 {
		t.Fatalf("expected catch to recover exactly one result, got %d: %v", len(got), got)
	}
}
