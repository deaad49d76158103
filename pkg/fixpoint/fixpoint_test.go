package fixpoint

import (
	"context"
	"testing"

	"github.com/mettalang/mork/pkg/space"
	"github.com/mettalang/mork/pkg/term"
)

func atom(s string) term.Value { return term.Atom(s) }

func parent(p, c string) term.Value {
	return term.NewSExpr(term.Atom("parent"), atom(p), atom(c))
}

func ancestorFact(a, b string) term.Value {
	return term.NewSExpr(term.Atom("ancestor"), atom(a), atom(b))
}

// TestAncestorFixedPoint exercises §8 scenario 5: repeatedly deriving
// `ancestor` facts from `parent` facts and the transitive-closure exec
// rule until a pass adds nothing new.
func TestAncestorFixedPoint(t *testing.T) {
	sp := space.New()
	sp.AddAtom(parent("Tom", "Bob"))
	sp.AddAtom(parent("Bob", "Ann"))
	sp.AddAtom(parent("Ann", "Pat"))

	// (exec 1 (parent $x $y) (ancestor $x $y))
	sp.AddAtom(term.NewSExpr(
		term.Atom("exec"), term.Long(1),
		term.NewSExpr(term.Atom("parent"), term.Atom("$x"), term.Atom("$y")),
		term.NewSExpr(term.Atom("ancestor"), term.Atom("$x"), term.Atom("$y")),
	))
	// (exec 1 (conjunction (ancestor $x $y) (parent $y $z)) (ancestor $x $z))
	sp.AddAtom(term.NewSExpr(
		term.Atom("exec"), term.Long(1),
		term.Conjunction{Goals: []term.Value{
			term.NewSExpr(term.Atom("ancestor"), term.Atom("$x"), term.Atom("$y")),
			term.NewSExpr(term.Atom("parent"), term.Atom("$y"), term.Atom("$z")),
		}},
		term.NewSExpr(term.Atom("ancestor"), term.Atom("$x"), term.Atom("$z")),
	))

	d := New(sp)
	res, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Converged {
		t.Error("expected the driver to reach a fixed point")
	}

	want := []term.Value{
		ancestorFact("Tom", "Bob"),
		ancestorFact("Bob", "Ann"),
		ancestorFact("Ann", "Pat"),
		ancestorFact("Tom", "Ann"),
		ancestorFact("Bob", "Pat"),
		ancestorFact("Tom", "Pat"),
	}
	got := sp.Collapse()
	for _, w := range want {
		found := false
		for _, g := range got {
			if g.Equal(w) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected derived fact %v, not found in final space", w)
		}
	}
}

func TestApplyRemovalMarkerRetractsAtom(t *testing.T) {
	sp := space.New()
	sp.AddAtom(parent("Tom", "Bob"))

	d := New(sp)
	f := execFact{
		priority:   parsePriority(term.Long(1)),
		antecedent: term.NewSExpr(term.Atom("parent"), term.Atom("$x"), term.Atom("$y")),
		consequent: term.NewSExpr(term.Atom("-"), term.NewSExpr(term.Atom("parent"), term.Atom("$x"), term.Atom("$y"))),
	}
	n, err := d.apply(f)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 retraction, got %d", n)
	}
	if len(sp.Collapse()) != 0 {
		t.Errorf("expected the parent fact to be retracted, got %v", sp.Collapse())
	}
}

func TestApplyIsIdempotentAcrossPasses(t *testing.T) {
	// invariant 8: re-running apply on an already-saturated space adds
	// nothing further.
	sp := space.New()
	sp.AddAtom(parent("Tom", "Bob"))
	sp.AddAtom(term.NewSExpr(
		term.Atom("exec"), term.Long(1),
		term.NewSExpr(term.Atom("parent"), term.Atom("$x"), term.Atom("$y")),
		term.NewSExpr(term.Atom("ancestor"), term.Atom("$x"), term.Atom("$y")),
	))

	d := New(sp)
	if _, err := d.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	before := len(sp.Collapse())

	res, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !res.Converged || res.Applied != 0 {
		t.Errorf("expected a no-op second run, got Applied=%d Converged=%v", res.Applied, res.Converged)
	}
	if len(sp.Collapse()) != before {
		t.Errorf("space size changed across a no-op run: %d vs %d", before, len(sp.Collapse()))
	}
}

func TestEnableParallelMatchProducesSameResult(t *testing.T) {
	sp := space.New()
	for i := 0; i < 80; i++ {
		sp.AddAtom(term.NewSExpr(term.Atom("num"), term.Long(int64(i))))
	}
	sp.AddAtom(term.NewSExpr(
		term.Atom("exec"), term.Long(1),
		term.NewSExpr(term.Atom("num"), term.Atom("$n")),
		term.NewSExpr(term.Atom("seen"), term.Atom("$n")),
	))

	d := New(sp)
	d.EnableParallelMatch(4)
	defer d.Shutdown()

	res, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Converged {
		t.Error("expected convergence with parallel matching enabled")
	}
	count := 0
	for _, a := range sp.Collapse() {
		if s, ok := a.(term.SExpr); ok && len(s.Elems) == 2 {
			if h, ok := s.Elems[0].(term.Atom); ok && h == "seen" {
				count++
			}
		}
	}
	if count != 80 {
		t.Errorf("expected 80 'seen' facts, got %d", count)
	}
}
