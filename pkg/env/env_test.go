package env

import (
	"testing"

	"github.com/mettalang/mork/pkg/term"
)

func TestForkSharesThenDivergesOnMutation(t *testing.T) {
	e := New()
	e.Self().AddAtom(term.NewSExpr(term.Atom("fact"), term.Long(1)))

	forked := e.Fork()
	forked.Self().AddAtom(term.NewSExpr(term.Atom("fact"), term.Long(2)))

	if got := len(e.Self().Collapse()); got != 1 {
		t.Errorf("expected the original environment's space untouched by the fork, got %d atoms", got)
	}
	if got := len(forked.Self().Collapse()); got != 2 {
		t.Errorf("expected the forked environment to see both atoms, got %d", got)
	}
}

func TestSelfHandleResolvesToSelf(t *testing.T) {
	e := New()
	e.Self().AddAtom(term.Atom("marker"))
	sp := e.ResolveSpace(e.SelfHandle())
	if sp != e.Self() {
		t.Error("expected SelfHandle to resolve back to Self()'s store")
	}
}

func TestNewSpaceRegistersAndResolves(t *testing.T) {
	e := New()
	handle, sp := e.NewSpace("")
	sp.AddAtom(term.Atom("x"))

	resolved := e.ResolveSpace(handle)
	if resolved != sp {
		t.Error("expected ResolveSpace to return the same store NewSpace created")
	}
}

func TestStateCellLifecycle(t *testing.T) {
	e := New()
	s := e.NewState(term.Long(0))

	v, ok := e.GetState(s)
	if !ok || !v.Equal(term.Long(0)) {
		t.Fatalf("GetState initial = %v, %v", v, ok)
	}

	if !e.ChangeState(s, term.Long(5)) {
		t.Fatal("expected ChangeState on a known handle to succeed")
	}
	v, ok = e.GetState(s)
	if !ok || !v.Equal(term.Long(5)) {
		t.Errorf("GetState after change = %v, %v", v, ok)
	}

	unknown := term.State{ID: 999999}
	if e.ChangeState(unknown, term.Long(1)) {
		t.Error("expected ChangeState on an unknown handle to fail")
	}
}

func TestExternalFunctionRegistration(t *testing.T) {
	e := New()
	e.RegisterExternal("double", func(args []term.Value, _ *Environment) ([]term.Value, error) {
		n := args[0].(term.Long)
		return []term.Value{n * 2}, nil
	})

	fn, ok := e.LookupExternal("double")
	if !ok {
		t.Fatal("expected to find the registered external function")
	}
	out, err := fn([]term.Value{term.Long(21)}, e)
	if err != nil || len(out) != 1 || !out[0].Equal(term.Long(42)) {
		t.Errorf("double(21) = %v, %v", out, err)
	}
}

func TestTokenReplacement(t *testing.T) {
	e := New()
	e.SetToken("PI", term.Float(3.14159))
	v, ok := e.LookupToken("PI")
	if !ok || !v.Equal(term.Float(3.14159)) {
		t.Errorf("LookupToken(PI) = %v, %v", v, ok)
	}
	if _, ok := e.LookupToken("UNKNOWN"); ok {
		t.Error("did not expect an unregistered token to resolve")
	}
}
