package vm

import "github.com/mettalang/mork/pkg/term"

// doFork implements OpFork: count sub-chunk indices follow, each one a
// branch the choice point will try in turn (§4.3's superpose/amb
// lowering). The operand layout is u16 count then count x u16
// sub-chunk indices; this engine resolves Fork's alternatives against
// the current chunk's SubChunks rather than its constant pool, since a
// branch is always compiled code, never a plain value.
func (m *VM) doFork() error {
	count, err := m.readU16()
	if err != nil {
		return err
	}
	alts := make([]Alt, count)
	for i := range alts {
		idx, err := m.readU16()
		if err != nil {
			return err
		}
		sub, err := m.subChunk(idx)
		if err != nil {
			return err
		}
		alts[i] = Alt{Chunk: sub}
	}
	if len(alts) == 0 {
		if !m.backtrack() {
			m.chunk = nil
		}
		return nil
	}
	m.pushChoicePoint(m.ip, m.chunk, alts)
	return nil
}

// doAmb implements OpAmb: a u8 alternative count, each a u16 sub-chunk
// index, functionally identical to Fork but with the compact 8-bit
// count used when a branch count is known to be small.
func (m *VM) doAmb() error {
	count, err := m.readU8()
	if err != nil {
		return err
	}
	alts := make([]Alt, count)
	for i := range alts {
		idx, err := m.readU16()
		if err != nil {
			return err
		}
		sub, err := m.subChunk(idx)
		if err != nil {
			return err
		}
		alts[i] = Alt{Chunk: sub}
	}
	if len(alts) == 0 {
		if !m.backtrack() {
			m.chunk = nil
		}
		return nil
	}
	m.pushChoicePoint(m.ip, m.chunk, alts)
	return nil
}

// collect implements Collect/CollectN: it gathers the value just
// produced together with every still-plain-value alternative waiting on
// the innermost choice point into one list, then commits past that
// choice point. A choice point whose remaining alternatives are
// compiled rule/chunk bodies (not yet reduced to a value) is left
// untouched past the point collect could shallow-gather, matching the
// contract that collect only ever snapshots values already at hand
// rather than forcing further evaluation.
func (m *VM) collect(limit int) error {
	first, err := m.pop()
	if err != nil {
		return err
	}
	out := []term.Value{first}
	if len(m.choices) > 0 {
		cp := &m.choices[len(m.choices)-1]
		taken := 0
		for _, alt := range cp.alternatives {
			if limit > 0 && len(out) >= limit {
				break
			}
			if alt.Chunk != nil || alt.IsRule {
				break
			}
			out = append(out, alt.Value)
			taken++
		}
		if taken == len(cp.alternatives) {
			m.choices = m.choices[:len(m.choices)-1]
		} else {
			cp.alternatives = cp.alternatives[taken:]
		}
	}
	return m.push(term.SExpr{Elems: out})
}
