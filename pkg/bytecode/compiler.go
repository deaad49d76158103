package bytecode

import (
	"fmt"

	"github.com/mettalang/mork/pkg/term"
)

// scope is the compiler's lexical environment for `let`/`let*`-bound
// locals. Pattern variables bound by rule dispatch are NOT looked up
// here: they resolve dynamically through the VM's binding stack via
// PushVariable (see compileAtom).
type scope struct {
	parent *scope
	locals map[string]uint16
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, locals: make(map[string]uint16)}
}

func (s *scope) lookup(name string) (uint16, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if slot, ok := cur.locals[name]; ok {
			return slot, true
		}
	}
	return 0, false
}

// Compiler lowers surface terms into Chunks. It holds no per-compile
// mutable state itself; every Compile call gets its own Builder/scope.
type Compiler struct{}

// New returns a ready-to-use compiler.
func New() *Compiler { return &Compiler{} }

// Compile lowers term t (the top level of a chunk, and hence in tail
// position) into a named Chunk.
func (c *Compiler) Compile(name string, t term.Value) (*Chunk, error) {
	b := NewBuilder(name)
	if err := c.compileExpr(b, nil, t, true); err != nil {
		return nil, err
	}
	b.Emit(OpReturn)
	return b.Chunk(), nil
}

func (c *Compiler) compileExpr(b *Builder, sc *scope, t term.Value, tail bool) error {
	if folded, ok := fold(t); ok {
		return c.pushConstant(b, folded)
	}

	switch v := t.(type) {
	case term.NilV:
		b.Emit(OpPushNil)
		return nil
	case term.UnitV:
		b.Emit(OpPushUnit)
		return nil
	case term.EmptyV:
		b.Emit(OpPushEmpty)
		return nil
	case term.Bool:
		if v {
			b.Emit(OpPushTrue)
		} else {
			b.Emit(OpPushFalse)
		}
		return nil
	case term.Long:
		if v >= -128 && v <= 127 {
			b.EmitU8(OpPushLongSmall, uint8(int8(v)))
		} else {
			b.EmitU16(OpPushConstant, b.Const(v))
		}
		return nil
	case term.Float, term.String:
		b.EmitU16(OpPushConstant, b.Const(v))
		return nil
	case term.Atom:
		return c.compileAtom(b, sc, v)
	case term.SExpr:
		return c.compileSExpr(b, sc, v, tail)
	case term.Quoted:
		b.EmitU16(OpPushConstant, b.Const(v.Of))
		b.Emit(OpMakeQuote)
		return nil
	default:
		return c.pushConstant(b, t)
	}
}

func (c *Compiler) pushConstant(b *Builder, v term.Value) error {
	switch vv := v.(type) {
	case term.NilV:
		b.Emit(OpPushNil)
	case term.UnitV:
		b.Emit(OpPushUnit)
	case term.EmptyV:
		b.Emit(OpPushEmpty)
	case term.Bool:
		if vv {
			b.Emit(OpPushTrue)
		} else {
			b.Emit(OpPushFalse)
		}
	case term.Long:
		if vv >= -128 && vv <= 127 {
			b.EmitU8(OpPushLongSmall, uint8(int8(vv)))
		} else {
			b.EmitU16(OpPushConstant, b.Const(vv))
		}
	default:
		b.EmitU16(OpPushConstant, b.Const(v))
	}
	return nil
}

func (c *Compiler) compileAtom(b *Builder, sc *scope, a term.Atom) error {
	name := string(a)
	if name == "&self" || name == "self" {
		// The only statically resolvable space reference; everything
		// else named with a leading "&" really is a pattern variable
		// (see term.Atom.IsVariable) and falls through below.
		b.EmitU16(OpLoadSpace, b.Const(a))
		return nil
	}
	if a.IsVariable() && !a.IsWildcard() {
		if slot, ok := sc.lookup(name); ok {
			b.EmitU16(OpLoadLocalWide, slot)
			return nil
		}
		b.EmitU16(OpPushVariable, b.Const(a))
		return nil
	}
	b.EmitU16(OpPushAtom, b.Const(a))
	return nil
}

// simpleBuiltins maps a recognized builtin head to the opcode it
// compiles to, for the simple fixed-arity arithmetic/logic/comparison
// and term-introspection operators that take their operands compiled
// left to right with no special control flow.
var simpleBuiltins = map[string]Op{
	"+": OpAdd, "*": OpMul, "/": OpDiv, "%": OpMod, "mod": OpMod,
	"pow": OpPow, "sqrt": OpSqrt, "log": OpLog, "abs": OpAbs, "floordiv": OpFloorDiv,
	"<": OpLt, "<=": OpLe, ">": OpGt, ">=": OpGe, "==": OpEq, "!=": OpNe,
	"car-atom": OpGetHead, "cdr-atom": OpGetTail, "size-atom": OpGetArity,
	"decons-atom": OpDeconAtom, "repr": OpRepr, "get-type": OpGetType,
	"get-metatype": OpGetMetaType, "unify": OpUnify, "match-term": OpMatch,
	"error": OpMakeError, "is-error": OpIsError,
}

// compileSExpr lowers a parenthesized form. Special forms (=, if, let,
// let*, quote, and/or/not/xor, superpose/collapse/case/catch, the space
// and state operators) get dedicated lowering; everything else with a
// concrete, non-variable head is either a recognized builtin or a user
// rule Call.
func (c *Compiler) compileSExpr(b *Builder, sc *scope, s term.SExpr, tail bool) error {
	if len(s.Elems) == 0 {
		b.Emit(OpPushNil)
		return nil
	}
	head, isAtom := s.Elems[0].(term.Atom)
	if !isAtom || head.IsVariable() {
		return c.compileDataList(b, sc, s)
	}

	switch string(head) {
	case "=":
		return c.compileDefineRule(b, s)
	case "if":
		return c.compileIf(b, sc, s, tail)
	case "let":
		return c.compileLet(b, sc, s, tail)
	case "let*":
		return c.compileLetStar(b, sc, s, tail)
	case "chain":
		return c.compileChain(b, sc, s, tail)
	case "catch":
		return c.compileCatch(b, sc, s)
	case "case":
		return c.compileCase(b, sc, s, tail)
	case "quote":
		return c.compileQuote(b, s)
	case "and", "or":
		return c.compileShortCircuit(b, sc, s, string(head))
	case "not":
		if err := c.compileArgs(b, sc, s); err != nil {
			return err
		}
		b.Emit(OpNot)
		return nil
	case "xor":
		if err := c.compileArgs(b, sc, s); err != nil {
			return err
		}
		b.Emit(OpXor)
		return nil
	case "superpose":
		return c.compileSuperpose(b, sc, s)
	case "collapse", "collapse-bind":
		return c.compileCollapse(b, sc, s)
	case "new-space":
		// The empty-atom constant is the sentinel loadSpace recognizes as
		// "allocate a fresh space" rather than resolving a static name.
		b.EmitU16(OpLoadSpace, b.Const(term.Atom("")))
		return nil
	case "add-atom":
		return c.compileSpaceLiteralOp(b, sc, s, OpSpaceAdd, 2)
	case "remove-atom":
		return c.compileSpaceLiteralOp(b, sc, s, OpSpaceRemove, 2)
	case "get-atoms":
		if err := c.compileArgs(b, sc, s); err != nil {
			return err
		}
		b.Emit(OpSpaceGetAtoms)
		return nil
	case "match":
		return c.compileSpaceLiteralOp(b, sc, s, OpSpaceMatch, 3)
	case "new-state":
		if err := c.compileArgs(b, sc, s); err != nil {
			return err
		}
		b.Emit(OpNewState)
		return nil
	case "get-state":
		if err := c.compileArgs(b, sc, s); err != nil {
			return err
		}
		b.Emit(OpGetState)
		return nil
	case "change-state!":
		if err := c.compileArgs(b, sc, s); err != nil {
			return err
		}
		b.Emit(OpChangeState)
		return nil
	case "map-atom":
		return c.compileHigherOrder(b, sc, s, OpMapAtom)
	case "filter-atom":
		return c.compileHigherOrder(b, sc, s, OpFilterAtom)
	case "foldl-atom":
		return c.compileHigherOrder(b, sc, s, OpFoldlAtom)
	case "amb":
		return c.compileAmb(b, sc, s)
	case "guard":
		if err := c.compileArgs(b, sc, s); err != nil {
			return err
		}
		b.Emit(OpGuard)
		return nil
	case "commit":
		return c.compileCommit(b, s)
	case "backtrack":
		b.Emit(OpBacktrack)
		return nil
	case "unquote":
		if err := c.compileArgs(b, sc, s); err != nil {
			return err
		}
		b.Emit(OpUnquote)
		return nil
	case "-":
		// Binary `-` is arithmetic subtraction. Unary `-` is never
		// evaluated arithmetically: it is the exec-consequent removal
		// marker `(- t)` (§4.6), so it falls through to the generic call
		// path below and self-evaluates, surviving as literal data the
		// same way `(parent $x $y)` does in an unmatched dispatch.
		if len(s.Elems) == 3 {
			if err := c.compileArgs(b, sc, s); err != nil {
				return err
			}
			b.Emit(OpSub)
			return nil
		}
	}

	if op, ok := simpleBuiltins[string(head)]; ok {
		if err := c.compileArgs(b, sc, s); err != nil {
			return err
		}
		b.Emit(op)
		return nil
	}

	// Everything else is a call to a user-defined (or dispatch-bridged)
	// symbol: compile arguments left to right, then dispatch.
	if err := c.compileArgs(b, sc, s); err != nil {
		return err
	}
	arity := uint8(len(s.Elems) - 1)
	headIdx := b.Const(head)
	if tail {
		b.EmitU16U8(OpTailCall, headIdx, arity)
	} else {
		b.EmitU16U8(OpCall, headIdx, arity)
	}
	return nil
}

func (c *Compiler) compileDataList(b *Builder, sc *scope, s term.SExpr) error {
	for _, e := range s.Elems {
		if err := c.compileExpr(b, sc, e, false); err != nil {
			return err
		}
	}
	n := len(s.Elems)
	if n <= 255 {
		b.EmitU8(OpMakeSExpr, uint8(n))
	} else {
		b.EmitU16(OpMakeSExprLarge, uint16(n))
	}
	return nil
}

func (c *Compiler) compileArgs(b *Builder, sc *scope, s term.SExpr) error {
	for _, a := range s.Elems[1:] {
		if err := c.compileExpr(b, sc, a, false); err != nil {
			return err
		}
	}
	return nil
}

// compileDefineRule lowers `(= lhs rhs)`: both sides are pushed as
// literal pattern/template constants, never compiled as expressions,
// since they are matched and substituted rather than evaluated until
// dispatch time.
func (c *Compiler) compileDefineRule(b *Builder, s term.SExpr) error {
	if len(s.Elems) != 3 {
		return fmt.Errorf("bytecode: (= lhs rhs) requires exactly 2 operands, got %d", len(s.Elems)-1)
	}
	b.EmitU16(OpPushConstant, b.Const(s.Elems[1]))
	b.EmitU16(OpPushConstant, b.Const(s.Elems[2]))
	b.Emit(OpDefineRule)
	return nil
}

// compileSpaceLiteralOp lowers a space operator whose first operand (the
// space handle) is evaluated normally but whose remaining wantArgs-1
// operands are ground pattern/atom data, pushed as literal constants the
// same way `=` pushes its LHS/RHS (§4.1's runtime note): a bare
// `(parent $p Bob)` passed to match must never be dispatched as a call
// to a `parent` rule, it is the pattern match/add-atom/remove-atom
// itself matches or stores against.
func (c *Compiler) compileSpaceLiteralOp(b *Builder, sc *scope, s term.SExpr, op Op, wantArgs int) error {
	if len(s.Elems)-1 != wantArgs {
		return fmt.Errorf("bytecode: %s requires %d operands, got %d", s.Elems[0], wantArgs, len(s.Elems)-1)
	}
	if err := c.compileExpr(b, sc, s.Elems[1], false); err != nil {
		return err
	}
	for _, lit := range s.Elems[2:] {
		b.EmitU16(OpPushConstant, b.Const(lit))
	}
	b.Emit(op)
	return nil
}

func (c *Compiler) compileIf(b *Builder, sc *scope, s term.SExpr, tail bool) error {
	if len(s.Elems) != 4 {
		return fmt.Errorf("bytecode: if requires a condition, then-branch, and else-branch")
	}
	cond, then, els := s.Elems[1], s.Elems[2], s.Elems[3]

	if folded, ok := fold(cond); ok {
		if bv, isBool := folded.(term.Bool); isBool {
			if bool(bv) {
				return c.compileExpr(b, sc, then, tail)
			}
			return c.compileExpr(b, sc, els, tail)
		}
	}

	if err := c.compileExpr(b, sc, cond, false); err != nil {
		return err
	}
	elseJump := b.EmitJump(OpJumpIfFalse)
	if err := c.compileExpr(b, sc, then, tail); err != nil {
		return err
	}
	endJump := b.EmitJump(OpJump)
	b.PatchJump(elseJump)
	if err := c.compileExpr(b, sc, els, tail); err != nil {
		return err
	}
	b.PatchJump(endJump)
	return nil
}

func (c *Compiler) compileLet(b *Builder, sc *scope, s term.SExpr, tail bool) error {
	if len(s.Elems) != 4 {
		return fmt.Errorf("bytecode: let requires a variable, value, and body")
	}
	varAtom, ok := s.Elems[1].(term.Atom)
	if !ok || !varAtom.IsVariable() {
		return fmt.Errorf("bytecode: let's first operand must be a variable, got %s", s.Elems[1])
	}
	if err := c.compileExpr(b, sc, s.Elems[2], false); err != nil {
		return err
	}
	inner := newScope(sc)
	slot := b.ReserveLocal()
	inner.locals[string(varAtom)] = slot
	b.EmitU16(OpStoreLocalWide, slot)
	return c.compileExpr(b, inner, s.Elems[3], tail)
}

// compileLetStar left-folds `(let* ((x1 v1) (x2 v2) ...) body)` into
// nested `let`s, per §4.3.
func (c *Compiler) compileLetStar(b *Builder, sc *scope, s term.SExpr, tail bool) error {
	if len(s.Elems) != 3 {
		return fmt.Errorf("bytecode: let* requires a binding list and a body")
	}
	bindings, ok := s.Elems[1].(term.SExpr)
	if !ok {
		return fmt.Errorf("bytecode: let*'s first operand must be a binding list")
	}
	body := s.Elems[2]
	nested := body
	for i := len(bindings.Elems) - 1; i >= 0; i-- {
		pair, ok := bindings.Elems[i].(term.SExpr)
		if !ok || len(pair.Elems) != 2 {
			return fmt.Errorf("bytecode: let* binding %d must be (var value)", i)
		}
		nested = term.SExpr{Elems: []term.Value{term.Atom("let"), pair.Elems[0], pair.Elems[1], nested}}
	}
	return c.compileExpr(b, sc, nested, tail)
}

// compileChain lowers `(chain a $x b)`: a is evaluated and bound to $x
// (a wildcard discards the value instead of binding it), then b runs
// with that binding visible. Unlike `let`, chain's first operand is
// always forced to a single value rather than pattern-matched, but the
// lowering is otherwise identical.
func (c *Compiler) compileChain(b *Builder, sc *scope, s term.SExpr, tail bool) error {
	if len(s.Elems) != 4 {
		return fmt.Errorf("bytecode: chain requires a value, a variable, and a body")
	}
	varAtom, ok := s.Elems[2].(term.Atom)
	if !ok || !varAtom.IsVariable() {
		return fmt.Errorf("bytecode: chain's second operand must be a variable, got %s", s.Elems[2])
	}
	if err := c.compileExpr(b, sc, s.Elems[1], false); err != nil {
		return err
	}
	if varAtom.IsWildcard() {
		b.Emit(OpPop)
		return c.compileExpr(b, sc, s.Elems[3], tail)
	}
	inner := newScope(sc)
	slot := b.ReserveLocal()
	inner.locals[string(varAtom)] = slot
	b.EmitU16(OpStoreLocalWide, slot)
	return c.compileExpr(b, inner, s.Elems[3], tail)
}

// compileCatch lowers `(catch expr ($err handler))`: expr always runs;
// if it produced an Error, handler runs with $err bound to it and its
// result replaces the Error, otherwise expr's value passes through
// unchanged.
func (c *Compiler) compileCatch(b *Builder, sc *scope, s term.SExpr) error {
	if len(s.Elems) != 3 {
		return fmt.Errorf("bytecode: catch requires an expression and a handler")
	}
	fnTerm, ok := s.Elems[2].(term.SExpr)
	if !ok || len(fnTerm.Elems) != 2 {
		return fmt.Errorf("bytecode: catch's handler must be ($err body)")
	}
	param, ok := fnTerm.Elems[0].(term.Atom)
	if !ok || !param.IsVariable() {
		return fmt.Errorf("bytecode: catch's handler parameter must be a variable")
	}
	if err := c.compileExpr(b, sc, s.Elems[1], false); err != nil {
		return err
	}
	sub := NewBuilder("catch#handler")
	fnScope := newScope(nil)
	slot := sub.ReserveLocal()
	fnScope.locals[string(param)] = slot
	sub.EmitU16(OpStoreLocalWide, slot)
	if err := c.compileExpr(sub, fnScope, fnTerm.Elems[1], true); err != nil {
		return err
	}
	sub.Emit(OpReturn)
	idx := b.AddSubChunk(sub.Chunk())
	b.EmitU16(OpCatch, idx)
	return nil
}

// compileCase lowers `(case expr ((p1 r1) (p2 r2) ...))`: expr is
// evaluated once, then each clause's pattern is matched against it in
// order (first match wins, bindings fold into the current frame for
// that clause's result); a clause whose pattern is a bare variable such
// as `$_` or the wildcard `_` always matches and serves as the final
// default. A case with no matching clause produces Empty, matching the
// sentinel's role in collapse filtering (§3, §8 scenario 3).
func (c *Compiler) compileCase(b *Builder, sc *scope, s term.SExpr, tail bool) error {
	if len(s.Elems) != 3 {
		return fmt.Errorf("bytecode: case requires an expression and a clause list")
	}
	clauses, ok := s.Elems[2].(term.SExpr)
	if !ok {
		return fmt.Errorf("bytecode: case's second operand must be a list of clauses")
	}
	if err := c.compileExpr(b, sc, s.Elems[1], false); err != nil {
		return err
	}
	var endJumps []int
	for _, cl := range clauses.Elems {
		pair, ok := cl.(term.SExpr)
		if !ok || len(pair.Elems) != 2 {
			return fmt.Errorf("bytecode: case clause must be (pattern result)")
		}
		b.EmitU16(OpPushConstant, b.Const(pair.Elems[0]))
		b.Emit(OpOver)
		b.Emit(OpMatchBind)
		failJump := b.EmitJump(OpJumpIfFalse)
		b.Emit(OpPop)
		if err := c.compileExpr(b, sc, pair.Elems[1], tail); err != nil {
			return err
		}
		endJumps = append(endJumps, b.EmitJump(OpJump))
		b.PatchJump(failJump)
	}
	b.Emit(OpPop)
	b.Emit(OpPushEmpty)
	for _, j := range endJumps {
		b.PatchJump(j)
	}
	return nil
}

func (c *Compiler) compileQuote(b *Builder, s term.SExpr) error {
	if len(s.Elems) != 2 {
		return fmt.Errorf("bytecode: quote takes exactly one operand")
	}
	b.EmitU16(OpPushConstant, b.Const(s.Elems[1]))
	b.Emit(OpMakeQuote)
	return nil
}

// compileShortCircuit never constant-folds a non-boolean operand away:
// runtime must still raise a type error for a non-boolean and/or
// operand, so both operands are always compiled and evaluated (§4.3a).
func (c *Compiler) compileShortCircuit(b *Builder, sc *scope, s term.SExpr, name string) error {
	if err := c.compileArgs(b, sc, s); err != nil {
		return err
	}
	if name == "and" {
		b.Emit(OpAnd)
	} else {
		b.Emit(OpOr)
	}
	return nil
}

// compileSuperpose lowers `(superpose (e1 e2 ... en))` to a Fork over
// one sub-chunk per alternative.
func (c *Compiler) compileSuperpose(b *Builder, sc *scope, s term.SExpr) error {
	if len(s.Elems) != 2 {
		return fmt.Errorf("bytecode: superpose takes exactly one list operand")
	}
	alts, ok := s.Elems[1].(term.SExpr)
	if !ok {
		return fmt.Errorf("bytecode: superpose's operand must be a list of alternatives")
	}
	indices := make([]uint16, len(alts.Elems))
	for i, alt := range alts.Elems {
		sub := NewBuilder(fmt.Sprintf("superpose#%d", i))
		if err := c.compileExpr(sub, sc, alt, true); err != nil {
			return err
		}
		sub.Emit(OpReturn)
		indices[i] = b.AddSubChunk(sub.Chunk())
	}
	b.emit(OpFork)
	b.u16(uint16(len(indices)))
	for _, idx := range indices {
		b.u16(idx)
	}
	return nil
}

// compileAmb lowers `(amb e1 e2 ... en)`, identical in spirit to
// superpose but through the Amb opcode's u8 alternative count.
func (c *Compiler) compileAmb(b *Builder, sc *scope, s term.SExpr) error {
	alts := s.Elems[1:]
	if len(alts) > 255 {
		return fmt.Errorf("bytecode: amb supports at most 255 alternatives, got %d", len(alts))
	}
	indices := make([]uint16, len(alts))
	for i, alt := range alts {
		sub := NewBuilder(fmt.Sprintf("amb#%d", i))
		if err := c.compileExpr(sub, sc, alt, true); err != nil {
			return err
		}
		sub.Emit(OpReturn)
		indices[i] = b.AddSubChunk(sub.Chunk())
	}
	b.EmitU8(OpAmb, uint8(len(indices)))
	for _, idx := range indices {
		b.u16(idx)
	}
	return nil
}

// compileCommit lowers `(commit)` (clear every choice point) or
// `(commit n)` for a compile-time-constant n (clear the topmost n).
func (c *Compiler) compileCommit(b *Builder, s term.SExpr) error {
	n := 0
	if len(s.Elems) == 2 {
		folded, ok := fold(s.Elems[1])
		if !ok {
			return fmt.Errorf("bytecode: commit's operand must be a compile-time constant")
		}
		l, ok := folded.(term.Long)
		if !ok || l < 0 || l > 255 {
			return fmt.Errorf("bytecode: commit's operand must be a small non-negative integer")
		}
		n = int(l)
	} else if len(s.Elems) != 1 {
		return fmt.Errorf("bytecode: commit takes zero or one operand")
	}
	b.EmitU8(OpCommit, uint8(n))
	return nil
}

// compileCollapse lowers `(collapse expr)`: expr is compiled into a
// sub-chunk that the VM runs to exhaustion, gathering every
// nondeterministic result into one SExpr (§8 scenario 3).
func (c *Compiler) compileCollapse(b *Builder, sc *scope, s term.SExpr) error {
	if len(s.Elems) != 2 {
		return fmt.Errorf("bytecode: collapse takes exactly one operand")
	}
	sub := NewBuilder("collapse")
	if err := c.compileExpr(sub, sc, s.Elems[1], true); err != nil {
		return err
	}
	sub.Emit(OpReturn)
	idx := b.AddSubChunk(sub.Chunk())
	b.EmitU16(OpCollect, idx)
	return nil
}

// compileHigherOrder lowers map-atom/filter-atom/foldl-atom. The
// function operand is written `($p1 $p2... body)`: one fresh parameter
// variable per value the VM pushes before invoking it (one for map-atom
// and filter-atom: the element; two for foldl-atom: the running
// accumulator, then the element), followed by the expression to evaluate.
func (c *Compiler) compileHigherOrder(b *Builder, sc *scope, s term.SExpr, op Op) error {
	if len(s.Elems) < 3 {
		return fmt.Errorf("bytecode: %s requires a collection and a function operand", s.Elems[0])
	}
	fnTerm, ok := s.Elems[len(s.Elems)-1].(term.SExpr)
	if !ok || len(fnTerm.Elems) < 2 {
		return fmt.Errorf("bytecode: %s's function operand must be ($param... body)", s.Elems[0])
	}
	params := fnTerm.Elems[:len(fnTerm.Elems)-1]
	body := fnTerm.Elems[len(fnTerm.Elems)-1]
	for _, a := range s.Elems[1 : len(s.Elems)-1] {
		if err := c.compileExpr(b, sc, a, false); err != nil {
			return err
		}
	}
	sub := NewBuilder(string(s.Elems[0].(term.Atom)) + "#fn")
	fnScope := newScope(nil)
	slots := make([]uint16, len(params))
	for i, p := range params {
		name, ok := p.(term.Atom)
		if !ok || !name.IsVariable() {
			return fmt.Errorf("bytecode: %s's function parameter must be a variable", s.Elems[0])
		}
		slots[i] = sub.ReserveLocal()
		fnScope.locals[string(name)] = slots[i]
	}
	// Values are pushed by the VM in param order, so the last param is
	// on top of the stack and must be popped first.
	for i := len(slots) - 1; i >= 0; i-- {
		sub.EmitU16(OpStoreLocalWide, slots[i])
	}
	if err := c.compileExpr(sub, fnScope, body, true); err != nil {
		return err
	}
	sub.Emit(OpReturn)
	idx := b.AddSubChunk(sub.Chunk())
	b.EmitU16(op, idx)
	return nil
}
