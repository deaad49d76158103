package vm

import (
	"context"

	"github.com/mettalang/mork/pkg/term"
)

// doCall implements Call and TailCall: extract the head/arity, ask the
// bridge for every matching rule body, and either fall through
// unevaluated (no match, per the engine's self-evaluation rule), enter
// the single match directly, or push a choice point over several (§4.4,
// §4.5). TailCall additionally collapses the current frame first so a
// recursive rule chain does not grow the call stack.
func (m *VM) doCall(ctx context.Context, tail bool) error {
	headIdx, err := m.readU16()
	if err != nil {
		return err
	}
	arity, err := m.readU8()
	if err != nil {
		return err
	}
	headVal, err := m.constant(headIdx)
	if err != nil {
		return err
	}
	headAtom, ok := headVal.(term.Atom)
	if !ok {
		return fatalf("Call's head constant is not a symbol")
	}
	args, err := m.popN(int(arity))
	if err != nil {
		return err
	}
	callTerm := term.SExpr{Elems: append([]term.Value{headAtom}, args...)}

	matches, err := m.bridge.Dispatch(callTerm)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return m.push(callTerm)
	}

	resumeIP, resumeChunk := m.ip, m.chunk
	if tail {
		if f, ok := m.leaveFrame(); ok {
			resumeIP, resumeChunk = f.returnIP, f.returnChunk
		}
	}
	if len(matches) == 1 {
		return m.enterChunk(matches[0].Chunk, resumeIP, resumeChunk, matches[0].Bindings)
	}
	m.pushChoicePoint(resumeIP, resumeChunk, ruleAlts(matches))
	return nil
}

// callNative invokes a VM-builtin identified by a small integer id
// (reserved for future primitives the compiler emits directly rather
// than through the general builtin-symbol dispatch table). No native
// ids are registered yet.
func (m *VM) callNative() error {
	_, err := m.readU16()
	if err != nil {
		return err
	}
	arity, err := m.readU8()
	if err != nil {
		return err
	}
	if _, err := m.popN(int(arity)); err != nil {
		return err
	}
	return fatalf("no native functions are registered")
}

// callExternal invokes a host function registered via
// env.RegisterExternal (§6's external-function registry).
func (m *VM) callExternal() error {
	nameIdx, err := m.readU16()
	if err != nil {
		return err
	}
	arity, err := m.readU8()
	if err != nil {
		return err
	}
	nameVal, err := m.constant(nameIdx)
	if err != nil {
		return err
	}
	nameAtom, ok := nameVal.(term.Atom)
	if !ok {
		return fatalf("CallExternal's name constant is not a symbol")
	}
	args, err := m.popN(int(arity))
	if err != nil {
		return err
	}
	fn, ok := m.env.LookupExternal(string(nameAtom))
	if !ok {
		return recoverable("unknown external function", nameAtom)
	}
	results, err := fn(args, m.env)
	if err != nil {
		return recoverable("external function error", term.String(err.Error()))
	}
	switch len(results) {
	case 0:
		return m.push(term.UnitV{})
	case 1:
		return m.push(results[0])
	default:
		if m.cfg.MultiResultExternalAsList {
			return m.push(term.SExpr{Elems: results})
		}
		m.pushChoicePoint(m.ip, m.chunk, valueAlts(results))
		return nil
	}
}

// callCached implements CallCached (§4.4): a memoized variant of Call,
// consulting the VM's small LRU before paying for a full dispatch. It
// makes no side-effect check of its own.
func (m *VM) callCached(ctx context.Context) error {
	headIdx, err := m.readU16()
	if err != nil {
		return err
	}
	arity, err := m.readU8()
	if err != nil {
		return err
	}
	headVal, err := m.constant(headIdx)
	if err != nil {
		return err
	}
	headAtom, ok := headVal.(term.Atom)
	if !ok {
		return fatalf("CallCached's head constant is not a symbol")
	}
	args, err := m.popN(int(arity))
	if err != nil {
		return err
	}
	key := cacheKey(string(headAtom), args)
	if cached, ok := m.cache.get(key); ok {
		if len(cached) == 1 {
			return m.push(cached[0])
		}
		m.pushChoicePoint(m.ip, m.chunk, valueAlts(cached))
		return nil
	}

	callTerm := term.SExpr{Elems: append([]term.Value{headAtom}, args...)}
	matches, err := m.bridge.Dispatch(callTerm)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		m.cache.put(key, []term.Value{callTerm})
		return m.push(callTerm)
	}

	results := make([]term.Value, 0, len(matches))
	for _, rm := range matches {
		v, err := m.callSubBound(ctx, rm.Chunk, nil, rm.Bindings)
		if err != nil {
			return err
		}
		results = append(results, v)
	}
	m.cache.put(key, results)
	if len(results) == 1 {
		return m.push(results[0])
	}
	m.pushChoicePoint(m.ip, m.chunk, valueAlts(results))
	return nil
}
