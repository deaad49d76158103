package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mettalang/mork/pkg/env"
	"github.com/mettalang/mork/pkg/term"
)

func TestDispatchReturnsSpecificityOrderedCandidates(t *testing.T) {
	e := env.New()
	br := New(e)
	e.Self().AddRule(
		term.NewSExpr(term.Atom("classify"), term.Long(0)),
		term.Atom("zero"),
	)
	e.Self().AddRule(
		term.NewSExpr(term.Atom("classify"), term.Atom("$x")),
		term.Atom("nonzero"),
	)

	matches, err := br.Dispatch(term.NewSExpr(term.Atom("classify"), term.Long(0)))
	require.NoError(t, err)
	assert.Len(t, matches, 1, "expected the concrete-literal rule alone to survive the tie-break")
}

func TestDispatchNoMatchReturnsEmpty(t *testing.T) {
	e := env.New()
	br := New(e)
	matches, err := br.Dispatch(term.NewSExpr(term.Atom("unknown"), term.Long(1)))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestCompileCachedSharesChunkForIdenticalBodies(t *testing.T) {
	e := env.New()
	br := New(e)
	e.Self().AddRule(term.NewSExpr(term.Atom("a"), term.Atom("$x")), term.Atom("same-body"))
	e.Self().AddRule(term.NewSExpr(term.Atom("b"), term.Atom("$x")), term.Atom("same-body"))

	m1, err := br.Dispatch(term.NewSExpr(term.Atom("a"), term.Long(1)))
	require.NoError(t, err)
	require.Len(t, m1, 1)
	m2, err := br.Dispatch(term.NewSExpr(term.Atom("b"), term.Long(1)))
	require.NoError(t, err)
	require.Len(t, m2, 1)
	assert.Same(t, m1[0].Chunk, m2[0].Chunk, "expected two rules with structurally identical bodies to share one compiled chunk")

	stats := br.Stats()
	assert.Greater(t, stats.CacheHits, uint64(0),"expected at least one cache hit from the shared rule body")
}

func TestSuggestSimilar(t *testing.T) {
	e := env.New()
	br := New(e)
	e.Self().AddRule(term.NewSExpr(term.Atom("ancestor"), term.Atom("$x"), term.Atom("$y")), term.Atom("body"))

	got := br.SuggestSimilar("ancestror", 3)
	found := false
	for _, g := range got {
		if g == "ancestor" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected SuggestSimilar(\"ancestror\") to suggest \"ancestor\", got %v", got)
	}
}
