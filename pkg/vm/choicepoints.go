package vm

import (
	"github.com/mettalang/mork/pkg/bytecode"
	"github.com/mettalang/mork/pkg/term"
)

// pushChoicePoint records the stack heights to restore on backtrack plus
// the remaining alternatives, then immediately applies the first
// alternative (so the caller never has to special-case "one candidate,
// no choice point" vs "first of several").
//
// Invariant: every ChoicePoint left on m.choices has at least one
// alternative remaining. applyAlt pops the CP off as soon as its last
// alternative is taken, so Backtrack never has to skip an empty one
// (§4.4 calls this "innermost non-empty").
func (m *VM) pushChoicePoint(resumeIP int, resumeChunk *bytecode.Chunk, alts []Alt) {
	cp := choicePoint{
		valueHeight:    len(m.values),
		callHeight:     len(m.calls),
		bindingsHeight: len(m.bindings),
		resumeIP:       resumeIP,
		chunk:          resumeChunk,
		alternatives:   alts,
	}
	m.choices = append(m.choices, cp)
	m.applyAlt()
}

// applyAlt consumes the front alternative of the innermost choice point
// and installs it as the VM's current execution state (§4.4).
func (m *VM) applyAlt() {
	cp := &m.choices[len(m.choices)-1]
	alt := cp.alternatives[0]
	cp.alternatives = cp.alternatives[1:]
	resumeIP, resumeChunk := cp.resumeIP, cp.chunk
	if len(cp.alternatives) == 0 {
		m.choices = m.choices[:len(m.choices)-1]
	}

	switch {
	case alt.IsRule:
		// errors from depth exhaustion here are surfaced the same way any
		// other recoverable error from applyAlt's caller would be; a
		// backtrack path that blows the depth budget just tries the next
		// alternative instead of the engine panicking.
		if err := m.enterChunk(alt.Chunk, resumeIP, resumeChunk, alt.Bindings); err != nil {
			m.values = append(m.values, term.NewError("depth exceeded", nil))
			m.chunk = resumeChunk
			m.ip = resumeIP
		}
	case alt.Chunk != nil:
		if err := m.enterChunk(alt.Chunk, resumeIP, resumeChunk, nil); err != nil {
			m.values = append(m.values, term.NewError("depth exceeded", nil))
			m.chunk = resumeChunk
			m.ip = resumeIP
		}
	default:
		m.values = append(m.values, alt.Value)
		m.chunk = resumeChunk
		m.ip = resumeIP
	}
}

// backtrack pops the innermost choice point, truncates the three other
// stacks to its recorded heights, and applies the next alternative.
// Returns false if there was no choice point to backtrack into.
func (m *VM) backtrack() bool {
	if len(m.choices) == 0 {
		return false
	}
	cp := &m.choices[len(m.choices)-1]
	m.values = m.values[:cp.valueHeight]
	m.calls = m.calls[:cp.callHeight]
	m.bindings = m.bindings[:cp.bindingsHeight]
	m.applyAlt()
	return true
}

// cut discards every choice point, committing to the current branch.
func (m *VM) cut() { m.choices = nil }

// commit discards the topmost n choice points (0 means all, matching
// cut).
func (m *VM) commit(n int) {
	if n == 0 || n >= len(m.choices) {
		m.choices = nil
		return
	}
	m.choices = m.choices[:len(m.choices)-n]
}

// ruleAlts converts bridge matches into choice-point alternatives.
func ruleAlts(matches []RuleMatch) []Alt {
	alts := make([]Alt, len(matches))
	for i, rm := range matches {
		alts[i] = Alt{IsRule: true, Chunk: rm.Chunk, Bindings: rm.Bindings}
	}
	return alts
}

// valueAlts wraps a set of plain values as choice-point alternatives,
// used by DispatchRules (which has no bridge/compiled body, only an
// instantiated term to push), CallExternal, CallCached, and SpaceMatch.
// Fork and Amb build chunk alternatives instead.
func valueAlts(vals []term.Value) []Alt {
	alts := make([]Alt, len(vals))
	for i, v := range vals {
		alts[i] = Alt{Value: v}
	}
	return alts
}
