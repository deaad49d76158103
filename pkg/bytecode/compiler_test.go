package bytecode

import (
	"testing"

	"github.com/mettalang/mork/pkg/term"
)

func TestCompileConstantFoldsArithmetic(t *testing.T) {
	// invariant 3: a fully-ground arithmetic expression compiles to the
	// same pushed value whether folded at compile time or evaluated at
	// runtime. Here we only check the folded side: the chunk must carry
	// the folded constant directly, not an Add opcode.
	chunk, err := New().Compile("test", term.NewSExpr(term.Atom("+"), term.Long(2), term.Long(3)))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if containsOp(chunk, OpAdd) {
		t.Error("expected (+ 2 3) to be constant-folded, found an Add opcode")
	}
	if !containsOp(chunk, OpPushLongSmall) {
		t.Error("expected the folded sum to be pushed as a small long constant")
	}
}

func TestCompileDivisionByZeroNotFolded(t *testing.T) {
	chunk, err := New().Compile("test", term.NewSExpr(term.Atom("/"), term.Long(1), term.Long(0)))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !containsOp(chunk, OpDiv) {
		t.Error("expected (/ 1 0) to compile to a runtime Div so the VM raises the division error")
	}
}

func TestCompileVariableEmitsPushVariable(t *testing.T) {
	chunk, err := New().Compile("test", term.NewSExpr(term.Atom("double"), term.Atom("$x")))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !containsOp(chunk, OpPushVariable) {
		t.Error("expected a free pattern variable to compile to PushVariable, not a baked-in constant")
	}
}

func TestCompileCallEmitsCallOrTailCall(t *testing.T) {
	chunk, err := New().Compile("test", term.NewSExpr(term.Atom("double"), term.Long(5)))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	// top level is tail position
	if !containsOp(chunk, OpTailCall) {
		t.Error("expected a top-level call to compile as a TailCall")
	}
}

func TestCompileUnaryMinusIsNotSubtraction(t *testing.T) {
	// The unary removal-marker form (- t) must not compile to OpSub;
	// it self-evaluates as an ordinary call/data form.
	chunk, err := New().Compile("test", term.NewSExpr(term.Atom("-"), term.NewSExpr(term.Atom("parent"), term.Atom("$x"), term.Atom("$y"))))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if containsOp(chunk, OpSub) {
		t.Error("did not expect unary (- t) to compile to Sub")
	}
}

func TestCompileBinaryMinusIsSubtraction(t *testing.T) {
	chunk, err := New().Compile("test", term.NewSExpr(term.Atom("-"), term.Atom("$x"), term.Long(1)))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !containsOp(chunk, OpSub) {
		t.Error("expected binary (- $x 1) to compile to Sub")
	}
}

func TestBuilderConstDeduplicates(t *testing.T) {
	b := NewBuilder("test")
	i1 := b.Const(term.String("hello"))
	i2 := b.Const(term.String("hello"))
	i3 := b.Const(term.String("world"))
	if i1 != i2 {
		t.Errorf("expected identical constants to share an index: %d != %d", i1, i2)
	}
	if i3 == i1 {
		t.Error("expected a distinct constant to get a distinct index")
	}
	if len(b.Chunk().Constants) != 2 {
		t.Errorf("expected 2 distinct pool entries, got %d", len(b.Chunk().Constants))
	}
}

func TestBuilderPatchJump(t *testing.T) {
	b := NewBuilder("test")
	pos := b.EmitJump(OpJump)
	b.Emit(OpPushNil)
	b.Emit(OpPushNil)
	b.PatchJump(pos)

	code := b.Chunk().Code
	offset := int16(code[pos+1])<<8 | int16(code[pos+2])
	want := int16(len(code) - (pos + 3))
	if offset != want {
		t.Errorf("patched jump offset = %d, want %d", offset, want)
	}
}

func TestOpValidAndString(t *testing.T) {
	if !OpAdd.Valid() {
		t.Error("expected OpAdd to be a valid opcode")
	}
	if Op(255).Valid() && Op(255) < opCount {
		t.Error("expected an out-of-range opcode to be invalid")
	}
	if OpAdd.String() != "Add" {
		t.Errorf("OpAdd.String() = %q, want %q", OpAdd.String(), "Add")
	}
}

func containsOp(c *Chunk, op Op) bool {
	for i := 0; i < len(c.Code); {
		cur := Op(c.Code[i])
		if cur == op {
			return true
		}
		i += 1 + operandWidth(cur)
	}
	return false
}

// operandWidth mirrors the VM's own decode widths closely enough for
// test traversal; it does not need to be exhaustive, only correct for
// the opcodes these tests emit.
func operandWidth(op Op) int {
	switch op {
	case OpPushLongSmall, OpDupN, OpPopN, OpLoadLocal, OpStoreLocal, OpMakeSExpr, OpMakeList,
		OpGetElement, OpJumpShort, OpJumpIfFalseShort, OpMatchArity, OpCommit:
		return 1
	case OpPushConstant, OpPushString, OpPushAtom, OpPushVariable, OpMakeSExprLarge,
		OpLoadLocalWide, OpStoreLocalWide, OpLoadBinding, OpStoreBinding, OpHasBinding,
		OpLoadUpvalue, OpJump, OpJumpIfFalse, OpJumpIfTrue, OpJumpIfNil, OpJumpIfError,
		OpMapAtom, OpFilterAtom, OpFoldlAtom, OpCatch, OpCollect, OpLoadGlobal, OpStoreGlobal,
		OpLoadSpace:
		return 2
	case OpCall, OpTailCall, OpCallNative, OpCallExternal, OpCallCached:
		return 3
	default:
		return 0
	}
}
