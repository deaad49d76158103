package space

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mettalang/mork/pkg/term"
)

func parentFact(p, c string) term.Value {
	return term.NewSExpr(term.Atom("parent"), term.Atom(p), term.Atom(c))
}

func TestAddAtomAndCollapse(t *testing.T) {
	sp := New()
	sp.AddAtom(parentFact("Tom", "Bob"))
	sp.AddAtom(parentFact("Pam", "Bob"))

	got := sp.Collapse()
	if len(got) != 2 {
		t.Fatalf("expected 2 atoms, got %d", len(got))
	}
}

func TestRemoveAtomTombstones(t *testing.T) {
	sp := New()
	sp.AddAtom(parentFact("Tom", "Bob"))

	if !sp.RemoveAtom(parentFact("Tom", "Bob")) {
		t.Fatal("expected RemoveAtom to report removal")
	}
	if got := sp.Collapse(); len(got) != 0 {
		t.Errorf("expected 0 live atoms after removal, got %d", len(got))
	}
	if sp.RemoveAtom(parentFact("Tom", "Bob")) {
		t.Error("expected a second RemoveAtom of the same fact to report false")
	}
}

func TestCloneIsCopyOnWrite(t *testing.T) {
	sp := New()
	sp.AddRule(term.NewSExpr(term.Atom("double"), term.Atom("$x")),
		term.NewSExpr(term.Atom("+"), term.Atom("$x"), term.Atom("$x")))

	clone := sp.Clone()
	clone.AddRule(term.NewSExpr(term.Atom("triple"), term.Atom("$x")),
		term.NewSExpr(term.Atom("*"), term.Atom("$x"), term.Long(3)))

	if got := sp.GetMatchingRules("triple", 1); len(got) != 0 {
		t.Error("expected a rule added to the clone not to appear in the original")
	}
	if got := clone.GetMatchingRules("double", 1); len(got) != 1 {
		t.Error("expected the clone to still see the rule present before cloning")
	}
}

func TestGetMatchingRulesIncludesWildcardBucket(t *testing.T) {
	sp := New()
	sp.AddRule(term.Atom("$anything"), term.Atom("matched-anything"))
	sp.AddRule(term.NewSExpr(term.Atom("double"), term.Atom("$x")),
		term.NewSExpr(term.Atom("+"), term.Atom("$x"), term.Atom("$x")))

	got := sp.GetMatchingRules("double", 1)
	if len(got) != 2 {
		t.Fatalf("expected both the head-indexed rule and the wildcard rule, got %d", len(got))
	}
}

func TestMatchSpaceAppliesBindingsPerAtom(t *testing.T) {
	sp := New()
	sp.AddAtom(parentFact("Tom", "Bob"))
	sp.AddAtom(parentFact("Pam", "Bob"))
	sp.AddAtom(parentFact("Tom", "Liz"))

	pattern := term.NewSExpr(term.Atom("parent"), term.Atom("$p"), term.Atom("Bob"))
	got := sp.MatchSpace(pattern, term.Atom("$p"))

	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d: %v", len(got), got)
	}
	seen := map[string]bool{}
	for _, v := range got {
		if a, ok := v.(term.Atom); ok {
			seen[string(a)] = true
		}
	}
	if !seen["Tom"] || !seen["Pam"] {
		t.Errorf("expected both Tom and Pam, got %v", got)
	}
}

func TestRuleCountAndAllRules(t *testing.T) {
	sp := New()
	sp.AddRule(term.Atom("$x"), term.Atom("wild"))
	sp.AddRule(term.NewSExpr(term.Atom("f"), term.Atom("$x")), term.Atom("body"))

	if got := sp.RuleCount(); got != 2 {
		t.Errorf("RuleCount() = %d, want 2", got)
	}
	if got := sp.AllRules(); len(got) != 2 {
		t.Errorf("AllRules() returned %d rules, want 2", len(got))
	}
}

func TestHeadSymbols(t *testing.T) {
	sp := New()
	sp.AddRule(term.NewSExpr(term.Atom("double"), term.Atom("$x")), term.Atom("body"))
	sp.AddAtom(parentFact("Tom", "Bob"))

	got := sp.HeadSymbols()
	want := []string{"double", "parent"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("HeadSymbols() mismatch (-want +got):\n%s", diff)
	}
}

func TestRemoveRule(t *testing.T) {
	sp := New()
	lhs := term.NewSExpr(term.Atom("f"), term.Atom("$x"))
	rhs := term.Atom("body")
	sp.AddRule(lhs, rhs)
	sp.RemoveRule(lhs, rhs)

	if got := sp.GetMatchingRules("f", 1); len(got) != 0 {
		t.Errorf("expected rule to be removed, got %d matches", len(got))
	}
}
