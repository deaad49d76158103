package vm

import (
	"context"

	"github.com/mettalang/mork/pkg/bytecode"
	"github.com/mettalang/mork/pkg/term"
)

// step executes exactly one instruction (or, for control-flow/call
// opcodes, the handful that logically belong together) and reports
// whether the whole run is finished. Every error returned is either a
// *FatalError or a recoverable error as classified in errors.go; step
// itself never panics on malformed bytecode (§4.4, §7).
func (m *VM) step(ctx context.Context) (bool, error) {
	if m.ip < 0 {
		return false, fatalf("instruction pointer %d out of bounds", m.ip)
	}
	if m.ip >= len(m.chunk.Code) {
		return m.doReturn(false)
	}

	op := bytecode.Op(m.chunk.Code[m.ip])
	if !op.Valid() {
		return false, fatalf("invalid opcode %d at ip=%d", op, m.ip)
	}
	m.ip++

	switch op {
	case bytecode.OpNop:
		return false, nil
	case bytecode.OpPop:
		_, err := m.pop()
		return false, err
	case bytecode.OpDup:
		v, err := m.peek()
		if err != nil {
			return false, err
		}
		return false, m.push(v)
	case bytecode.OpSwap:
		n := len(m.values)
		if n < 2 {
			return false, fatalf("value stack underflow on Swap")
		}
		m.values[n-1], m.values[n-2] = m.values[n-2], m.values[n-1]
		return false, nil
	case bytecode.OpRot3:
		n := len(m.values)
		if n < 3 {
			return false, fatalf("value stack underflow on Rot3")
		}
		m.values[n-3], m.values[n-2], m.values[n-1] = m.values[n-1], m.values[n-3], m.values[n-2]
		return false, nil
	case bytecode.OpOver:
		n := len(m.values)
		if n < 2 {
			return false, fatalf("value stack underflow on Over")
		}
		return false, m.push(m.values[n-2])
	case bytecode.OpDupN:
		n, err := m.readU8()
		if err != nil {
			return false, err
		}
		if len(m.values) < int(n) {
			return false, fatalf("value stack underflow on DupN")
		}
		m.values = append(m.values, m.values[len(m.values)-int(n):]...)
		return false, nil
	case bytecode.OpPopN:
		n, err := m.readU8()
		if err != nil {
			return false, err
		}
		_, err = m.popN(int(n))
		return false, err

	case bytecode.OpPushNil:
		return false, m.push(term.NilV{})
	case bytecode.OpPushTrue:
		return false, m.push(term.Bool(true))
	case bytecode.OpPushFalse:
		return false, m.push(term.Bool(false))
	case bytecode.OpPushUnit:
		return false, m.push(term.UnitV{})
	case bytecode.OpPushEmpty:
		return false, m.push(term.EmptyV{})
	case bytecode.OpPushLongSmall:
		v, err := m.readI8()
		if err != nil {
			return false, err
		}
		return false, m.push(term.Long(v))
	case bytecode.OpPushConstant, bytecode.OpPushString, bytecode.OpPushAtom:
		idx, err := m.readU16()
		if err != nil {
			return false, err
		}
		v, err := m.constant(idx)
		if err != nil {
			return false, err
		}
		return false, m.push(v)

	case bytecode.OpPushVariable:
		idx, err := m.readU16()
		if err != nil {
			return false, err
		}
		v, err := m.constant(idx)
		if err != nil {
			return false, err
		}
		// A variable not bound to a lexical local resolves dynamically
		// against the current binding frame (rule-dispatch bindings, or a
		// match/case clause's bindings); one not present in it stays an
		// unresolved atom, supporting partial evaluation (§3, §4.1).
		a, ok := v.(term.Atom)
		if !ok {
			return false, m.push(v)
		}
		if bound, found := m.curBindings().Lookup(string(a)); found {
			return false, m.push(bound)
		}
		return false, m.push(v)

	case bytecode.OpMakeSExpr, bytecode.OpMakeList:
		n, err := m.readU8()
		if err != nil {
			return false, err
		}
		elems, err := m.popN(int(n))
		if err != nil {
			return false, err
		}
		return false, m.push(term.SExpr{Elems: elems})
	case bytecode.OpMakeSExprLarge:
		n, err := m.readU16()
		if err != nil {
			return false, err
		}
		elems, err := m.popN(int(n))
		if err != nil {
			return false, err
		}
		return false, m.push(term.SExpr{Elems: elems})
	case bytecode.OpMakeQuote:
		v, err := m.pop()
		if err != nil {
			return false, err
		}
		return false, m.push(term.Quoted{Of: v})

	case bytecode.OpUnquote:
		v, err := m.pop()
		if err != nil {
			return false, err
		}
		q, ok := v.(term.Quoted)
		if !ok {
			return false, typeError(term.Atom("Quoted"), v)
		}
		return false, m.push(q.Of)

	case bytecode.OpLoadLocal:
		idx, err := m.readU8()
		if err != nil {
			return false, err
		}
		return false, m.loadLocal(int(idx))
	case bytecode.OpLoadLocalWide:
		idx, err := m.readU16()
		if err != nil {
			return false, err
		}
		return false, m.loadLocal(int(idx))
	case bytecode.OpStoreLocal:
		idx, err := m.readU8()
		if err != nil {
			return false, err
		}
		return false, m.storeLocal(int(idx))
	case bytecode.OpStoreLocalWide:
		idx, err := m.readU16()
		if err != nil {
			return false, err
		}
		return false, m.storeLocal(int(idx))
	case bytecode.OpLoadUpvalue:
		idx, err := m.readU16()
		if err != nil {
			return false, err
		}
		if len(m.locals) < 2 {
			return false, fatalf("no enclosing frame for upvalue %d", idx)
		}
		outer := m.locals[len(m.locals)-2]
		if int(idx) >= len(outer) {
			return false, fatalf("upvalue index %d out of bounds", idx)
		}
		return false, m.push(outer[idx])

	case bytecode.OpLoadBinding:
		idx, err := m.readU16()
		if err != nil {
			return false, err
		}
		name, err := m.constant(idx)
		if err != nil {
			return false, err
		}
		a, ok := name.(term.Atom)
		if !ok {
			return false, fatalf("LoadBinding constant is not an atom")
		}
		v, ok := m.curBindings().Lookup(string(a))
		if !ok {
			return false, m.push(term.NilV{})
		}
		return false, m.push(v)
	case bytecode.OpStoreBinding:
		idx, err := m.readU16()
		if err != nil {
			return false, err
		}
		name, err := m.constant(idx)
		if err != nil {
			return false, err
		}
		a, ok := name.(term.Atom)
		if !ok {
			return false, fatalf("StoreBinding constant is not an atom")
		}
		v, err := m.pop()
		if err != nil {
			return false, err
		}
		next, ok := m.curBindings().With(string(a), v)
		if !ok {
			return false, recoverable("binding conflict", a)
		}
		m.bindings[len(m.bindings)-1] = next
		return false, nil
	case bytecode.OpHasBinding:
		idx, err := m.readU16()
		if err != nil {
			return false, err
		}
		name, err := m.constant(idx)
		if err != nil {
			return false, err
		}
		a, _ := name.(term.Atom)
		_, ok := m.curBindings().Lookup(string(a))
		return false, m.push(term.Bool(ok))
	case bytecode.OpPushBindingFrame:
		m.pushBindingFrame(nil)
		return false, nil
	case bytecode.OpPopBindingFrame:
		return false, m.popBindingFrame()
	case bytecode.OpClearBindings:
		m.bindings[len(m.bindings)-1] = term.NewBindings()
		return false, nil

	case bytecode.OpJump:
		off, err := m.readI16()
		if err != nil {
			return false, err
		}
		m.ip += int(off)
		return false, nil
	case bytecode.OpJumpShort:
		off, err := m.readI8()
		if err != nil {
			return false, err
		}
		m.ip += int(off)
		return false, nil
	case bytecode.OpJumpIfFalse, bytecode.OpJumpIfFalseShort, bytecode.OpJumpIfTrue, bytecode.OpJumpIfNil, bytecode.OpJumpIfError:
		return false, m.condJump(op)
	case bytecode.OpCall:
		return false, m.doCall(ctx, false)
	case bytecode.OpTailCall:
		return false, m.doCall(ctx, true)
	case bytecode.OpReturn:
		return m.doReturn(false)
	case bytecode.OpReturnMulti:
		return m.doReturn(true)
	case bytecode.OpHalt:
		m.chunk = nil
		return true, nil

	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod,
		bytecode.OpFloorDiv, bytecode.OpPow:
		return false, m.binArith(op)
	case bytecode.OpNeg, bytecode.OpAbs, bytecode.OpSqrt, bytecode.OpLog:
		return false, m.unArith(op)
	case bytecode.OpLt, bytecode.OpLe, bytecode.OpGt, bytecode.OpGe, bytecode.OpEq, bytecode.OpNe:
		return false, m.compare(op)
	case bytecode.OpStructEq:
		b, err := m.pop()
		if err != nil {
			return false, err
		}
		a, err := m.pop()
		if err != nil {
			return false, err
		}
		return false, m.push(term.Bool(a.Equal(b)))
	case bytecode.OpAnd, bytecode.OpOr, bytecode.OpXor:
		return false, m.boolBin(op)
	case bytecode.OpNot:
		return false, m.boolNot()

	case bytecode.OpGetHead, bytecode.OpGetTail, bytecode.OpGetArity, bytecode.OpGetElement,
		bytecode.OpDeconAtom, bytecode.OpConsAtom, bytecode.OpRepr, bytecode.OpGetType,
		bytecode.OpCheckType, bytecode.OpIsType, bytecode.OpAssertType, bytecode.OpGetMetaType,
		bytecode.OpIsVariable, bytecode.OpIsSExpr, bytecode.OpIsSymbol,
		bytecode.OpMakeError, bytecode.OpIsError:
		return false, m.termOp(op)

	case bytecode.OpMatch, bytecode.OpMatchBind, bytecode.OpMatchArity, bytecode.OpUnify, bytecode.OpUnifyBind:
		return false, m.patternOp(op)

	case bytecode.OpMapAtom, bytecode.OpFilterAtom, bytecode.OpFoldlAtom, bytecode.OpCatch:
		return false, m.higherOrderOp(ctx, op)

	case bytecode.OpFork:
		return false, m.doFork()
	case bytecode.OpFail:
		if !m.backtrack() {
			return true, nil
		}
		return false, nil
	case bytecode.OpCut:
		m.cut()
		return false, nil
	case bytecode.OpCollect:
		n, err := m.readU16()
		if err != nil {
			return false, err
		}
		return false, m.collect(int(n))
	case bytecode.OpCollectN:
		n, err := m.readU8()
		if err != nil {
			return false, err
		}
		return false, m.collect(int(n))
	case bytecode.OpYield:
		v, err := m.pop()
		if err != nil {
			return false, err
		}
		m.results = append(m.results, v)
		if !m.backtrack() {
			return true, nil
		}
		return false, nil
	case bytecode.OpBeginNondet, bytecode.OpEndNondet:
		return false, nil
	case bytecode.OpGuard:
		v, err := m.pop()
		if err != nil {
			return false, err
		}
		ok, isBool := v.(term.Bool)
		if !isBool {
			return false, typeError(term.Atom("Bool"), v)
		}
		if bool(ok) {
			return false, nil
		}
		if !m.backtrack() {
			return true, nil
		}
		return false, nil
	case bytecode.OpAmb:
		return false, m.doAmb()
	case bytecode.OpCommit:
		n, err := m.readU8()
		if err != nil {
			return false, err
		}
		m.commit(int(n))
		return false, nil
	case bytecode.OpBacktrack:
		if !m.backtrack() {
			return true, nil
		}
		return false, nil

	case bytecode.OpDefineRule:
		return false, m.defineRule()
	case bytecode.OpDispatchRules:
		return false, m.dispatchRules()
	case bytecode.OpLoadGlobal, bytecode.OpStoreGlobal:
		return false, fatalf("globals are not supported by this engine")
	case bytecode.OpSpaceAdd, bytecode.OpSpaceRemove, bytecode.OpSpaceGetAtoms, bytecode.OpSpaceMatch:
		return false, m.spaceOp(op)
	case bytecode.OpLoadSpace:
		idx, err := m.readU16()
		if err != nil {
			return false, err
		}
		return false, m.loadSpace(idx)
	case bytecode.OpNewState, bytecode.OpGetState, bytecode.OpChangeState:
		return false, m.stateOp(op)

	case bytecode.OpCallNative:
		return false, m.callNative()
	case bytecode.OpCallExternal:
		return false, m.callExternal()
	case bytecode.OpCallCached:
		return false, m.callCached(ctx)
	}

	return false, fatalf("unhandled opcode %s", op)
}

func (m *VM) loadLocal(idx int) error {
	locs := m.curLocals()
	if idx >= len(locs) {
		return fatalf("local index %d out of bounds", idx)
	}
	v := locs[idx]
	if v == nil {
		v = term.NilV{}
	}
	return m.push(v)
}

func (m *VM) storeLocal(idx int) error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	locs := m.curLocals()
	if idx >= len(locs) {
		return fatalf("local index %d out of bounds", idx)
	}
	locs[idx] = v
	return nil
}

func (m *VM) condJump(op bytecode.Op) error {
	var off int
	if op == bytecode.OpJumpIfFalseShort {
		v, err := m.readI8()
		if err != nil {
			return err
		}
		off = int(v)
	} else {
		v, err := m.readI16()
		if err != nil {
			return err
		}
		off = int(v)
	}
	v, err := m.pop()
	if err != nil {
		return err
	}
	take := false
	switch op {
	case bytecode.OpJumpIfFalse, bytecode.OpJumpIfFalseShort:
		b, ok := v.(term.Bool)
		if !ok {
			return typeError(term.Atom("Bool"), v)
		}
		take = !bool(b)
	case bytecode.OpJumpIfTrue:
		b, ok := v.(term.Bool)
		if !ok {
			return typeError(term.Atom("Bool"), v)
		}
		take = bool(b)
	case bytecode.OpJumpIfNil:
		take = term.IsNilLike(v)
	case bytecode.OpJumpIfError:
		_, take = v.(term.Error)
	}
	if take {
		m.ip += off
	}
	return nil
}

// doReturn implements both OpReturn/OpReturnMulti and the implicit
// return that happens when execution falls off the end of a chunk with
// no explicit terminator.
func (m *VM) doReturn(multi bool) (bool, error) {
	var retVals []term.Value
	if multi && len(m.values) > 0 {
		if top, ok := m.values[len(m.values)-1].(term.SExpr); ok {
			if _, err := m.pop(); err != nil {
				return false, err
			}
			retVals = top.Elems
		}
	}
	if retVals == nil {
		if len(m.values) == 0 {
			retVals = nil
		} else {
			v, err := m.pop()
			if err != nil {
				return false, err
			}
			retVals = []term.Value{v}
		}
	}

	f, ok := m.leaveFrame()
	if !ok {
		m.results = append(m.results, retVals...)
		m.chunk = nil
		return true, nil
	}
	for _, v := range retVals {
		if err := m.push(v); err != nil {
			return false, err
		}
	}
	m.chunk = f.returnChunk
	m.ip = f.returnIP
	return false, nil
}
