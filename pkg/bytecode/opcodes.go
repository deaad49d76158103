// Package bytecode lowers surface terms into the stack-IR chunks that
// package vm interprets (§4.3): opcodes, the constant pool, sub-chunks
// for higher-order operators, and the compiler itself.
package bytecode

// Op is a single VM instruction. It is always followed by however many
// operand bytes its form requires (encoded big-endian); see chunk.go's
// Builder for the exact encoding of each operand width.
type Op byte

const (
	// --- stack ---
	OpNop Op = iota
	OpPop
	OpDup
	OpSwap
	OpRot3
	OpOver
	OpDupN  // u8: duplicate the top N values
	OpPopN  // u8: discard the top N values

	// --- literals ---
	OpPushNil
	OpPushTrue
	OpPushFalse
	OpPushUnit
	OpPushEmpty
	OpPushLongSmall  // i8
	OpPushConstant   // u16: index into constants
	OpPushString     // u16: index into constants (term.String)
	OpPushAtom       // u16: index into constants (term.Atom)
	OpPushVariable   // u16: index into constants (term.Atom, variable name)

	// --- aggregates ---
	OpMakeSExpr      // u8: pop N, build SExpr
	OpMakeSExprLarge // u16: pop N, build SExpr
	OpMakeList       // u8: alias of MakeSExpr for list literals
	OpMakeQuote      // pop 1, wrap Quoted
	OpUnquote        // pop 1 Quoted, push its wrapped value

	// --- bindings / locals ---
	OpLoadLocal       // u8: frame-relative stack slot
	OpLoadLocalWide   // u16
	OpStoreLocal      // u8
	OpStoreLocalWide  // u16
	OpLoadBinding     // u16: constant index names the variable
	OpStoreBinding    // u16
	OpHasBinding      // u16: push Bool
	OpPushBindingFrame
	OpPopBindingFrame
	OpClearBindings
	OpLoadUpvalue // u16

	// --- control ---
	OpJump         // i16
	OpJumpIfFalse  // i16
	OpJumpIfTrue   // i16
	OpJumpIfNil    // i16
	OpJumpIfError  // i16
	OpJumpShort        // i8
	OpJumpIfFalseShort // i8
	OpCall         // u16 head-const, u8 arity
	OpTailCall     // u16 head-const, u8 arity
	OpReturn
	OpReturnMulti
	OpHalt

	// --- arithmetic / logic / comparison ---
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpAbs
	OpFloorDiv
	OpPow
	OpSqrt
	OpLog
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
	OpStructEq
	OpAnd
	OpOr
	OpNot
	OpXor

	// --- terms ---
	OpGetHead
	OpGetTail
	OpGetArity
	OpGetElement // u8 index
	OpDeconAtom
	OpConsAtom
	OpRepr
	OpGetType
	OpCheckType
	OpIsType
	OpAssertType
	OpGetMetaType
	OpIsVariable
	OpIsSExpr
	OpIsSymbol
	OpMakeError // pop 2 (msg, details), push Error
	OpIsError   // pop 1, push Bool

	// --- pattern ---
	OpMatch
	OpMatchBind
	OpMatchArity // u8
	OpUnify
	OpUnifyBind

	// --- higher-order ---
	OpMapAtom    // u16 sub-chunk index
	OpFilterAtom // u16 sub-chunk index
	OpFoldlAtom  // u16 sub-chunk index
	OpCatch      // u16 sub-chunk index: pop 1; if Error, call sub with it as the one argument

	// --- nondeterminism ---
	OpFork // u16 count, then count x u16 sub-chunk indices (one compiled branch each)
	OpFail
	OpCut
	OpCollect    // u16
	OpCollectN   // u8
	OpYield
	OpBeginNondet
	OpEndNondet
	OpAmb  // u8 alt count, each a sub-chunk index follows as u16
	OpGuard
	OpCommit   // u8: 0 means clear all choice points
	OpBacktrack

	// --- rules / spaces / state ---
	OpDefineRule
	OpDispatchRules
	OpLoadGlobal  // u16
	OpStoreGlobal // u16
	OpSpaceAdd
	OpSpaceRemove
	OpSpaceGetAtoms
	OpSpaceMatch
	OpLoadSpace // u16
	OpNewState
	OpGetState
	OpChangeState

	// --- advanced calls ---
	OpCallNative   // u16 id, u8 arity
	OpCallExternal // u16 name-const, u8 arity
	OpCallCached   // u16 head-const, u8 arity

	opCount
)

var opNames = [opCount]string{
	OpNop: "Nop", OpPop: "Pop", OpDup: "Dup", OpSwap: "Swap", OpRot3: "Rot3", OpOver: "Over",
	OpDupN: "DupN", OpPopN: "PopN",
	OpPushNil: "PushNil", OpPushTrue: "PushTrue", OpPushFalse: "PushFalse", OpPushUnit: "PushUnit",
	OpPushEmpty: "PushEmpty", OpPushLongSmall: "PushLongSmall", OpPushConstant: "PushConstant",
	OpPushString: "PushString", OpPushAtom: "PushAtom", OpPushVariable: "PushVariable",
	OpMakeSExpr: "MakeSExpr", OpMakeSExprLarge: "MakeSExprLarge", OpMakeList: "MakeList", OpMakeQuote: "MakeQuote",
	OpUnquote: "Unquote",
	OpLoadLocal: "LoadLocal", OpLoadLocalWide: "LoadLocalWide", OpStoreLocal: "StoreLocal",
	OpStoreLocalWide: "StoreLocalWide", OpLoadBinding: "LoadBinding", OpStoreBinding: "StoreBinding",
	OpHasBinding: "HasBinding", OpPushBindingFrame: "PushBindingFrame", OpPopBindingFrame: "PopBindingFrame",
	OpClearBindings: "ClearBindings", OpLoadUpvalue: "LoadUpvalue",
	OpJump: "Jump", OpJumpIfFalse: "JumpIfFalse", OpJumpIfTrue: "JumpIfTrue", OpJumpIfNil: "JumpIfNil",
	OpJumpIfError: "JumpIfError", OpJumpShort: "JumpShort", OpJumpIfFalseShort: "JumpIfFalseShort",
	OpCall: "Call", OpTailCall: "TailCall", OpReturn: "Return", OpReturnMulti: "ReturnMulti", OpHalt: "Halt",
	OpAdd: "Add", OpSub: "Sub", OpMul: "Mul", OpDiv: "Div", OpMod: "Mod", OpNeg: "Neg", OpAbs: "Abs",
	OpFloorDiv: "FloorDiv", OpPow: "Pow", OpSqrt: "Sqrt", OpLog: "Log",
	OpLt: "Lt", OpLe: "Le", OpGt: "Gt", OpGe: "Ge", OpEq: "Eq", OpNe: "Ne", OpStructEq: "StructEq",
	OpAnd: "And", OpOr: "Or", OpNot: "Not", OpXor: "Xor",
	OpGetHead: "GetHead", OpGetTail: "GetTail", OpGetArity: "GetArity", OpGetElement: "GetElement",
	OpDeconAtom: "DeconAtom", OpConsAtom: "ConsAtom", OpRepr: "Repr", OpGetType: "GetType",
	OpCheckType: "CheckType", OpIsType: "IsType", OpAssertType: "AssertType", OpGetMetaType: "GetMetaType",
	OpIsVariable: "IsVariable", OpIsSExpr: "IsSExpr", OpIsSymbol: "IsSymbol",
	OpMakeError: "MakeError", OpIsError: "IsError",
	OpMatch: "Match", OpMatchBind: "MatchBind", OpMatchArity: "MatchArity", OpUnify: "Unify", OpUnifyBind: "UnifyBind",
	OpMapAtom: "MapAtom", OpFilterAtom: "FilterAtom", OpFoldlAtom: "FoldlAtom", OpCatch: "Catch",
	OpFork: "Fork", OpFail: "Fail", OpCut: "Cut", OpCollect: "Collect", OpCollectN: "CollectN",
	OpYield: "Yield", OpBeginNondet: "BeginNondet", OpEndNondet: "EndNondet", OpAmb: "Amb",
	OpGuard: "Guard", OpCommit: "Commit", OpBacktrack: "Backtrack",
	OpDefineRule: "DefineRule", OpDispatchRules: "DispatchRules", OpLoadGlobal: "LoadGlobal",
	OpStoreGlobal: "StoreGlobal", OpSpaceAdd: "SpaceAdd", OpSpaceRemove: "SpaceRemove",
	OpSpaceGetAtoms: "SpaceGetAtoms", OpSpaceMatch: "SpaceMatch", OpLoadSpace: "LoadSpace",
	OpNewState: "NewState", OpGetState: "GetState", OpChangeState: "ChangeState",
	OpCallNative: "CallNative", OpCallExternal: "CallExternal", OpCallCached: "CallCached",
}

func (o Op) String() string {
	if int(o) < len(opNames) && opNames[o] != "" {
		return opNames[o]
	}
	return "Op(?)"
}

// Valid reports whether o is a defined opcode, used by the VM to raise
// an engine-fatal "invalid opcode" error instead of panicking (§4.4,
// §7).
func (o Op) Valid() bool { return o < opCount }
