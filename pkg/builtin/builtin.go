// Package builtin registers the host-side external functions named in
// §6's reserved-atom list that have no dedicated opcode: the
// assertEqual family, println!/trace!, and nop. Everything else
// reserved (arithmetic, comparisons, match/case/catch, space and state
// operations) compiles straight to an opcode in package bytecode and is
// interpreted directly by package vm; these are registered as external
// functions, the same registry a host embedding the engine would use to
// add its own primitives, and the VM's CallExternal opcode reaches them.
// Package bytecode does not emit CallExternal: a call such as
// `(println! x)` compiles to an ordinary rule Call.
package builtin

import (
	"fmt"
	"io"
	"os"

	"github.com/mettalang/mork/pkg/env"
	"github.com/mettalang/mork/pkg/term"
)

// traceWriter is where trace! writes; tests redirect it to a buffer.
var traceWriter io.Writer = os.Stderr

// Register installs every built-in external function on e.
func Register(e *env.Environment) {
	e.RegisterExternal("println!", println_)
	e.RegisterExternal("trace!", trace)
	e.RegisterExternal("nop", nop)
	e.RegisterExternal("assertEqual", assertEqual)
	e.RegisterExternal("assertEqualMsg", assertEqualMsg)
	e.RegisterExternal("assertEqualToResult", assertEqualToResult)
	e.RegisterExternal("assertEqualToResultMsg", assertEqualToResultMsg)
}

func println_(args []term.Value, _ *env.Environment) ([]term.Value, error) {
	for _, a := range args {
		fmt.Println(a.String())
	}
	return []term.Value{term.UnitV{}}, nil
}

func trace(args []term.Value, _ *env.Environment) ([]term.Value, error) {
	if len(args) == 0 {
		return []term.Value{term.UnitV{}}, nil
	}
	fmt.Fprintln(traceWriter, args[0].String())
	if len(args) > 1 {
		return []term.Value{args[1]}, nil
	}
	return []term.Value{args[0]}, nil
}

func nop(args []term.Value, _ *env.Environment) ([]term.Value, error) {
	return []term.Value{term.UnitV{}}, nil
}

func assertEqual(args []term.Value, e *env.Environment) ([]term.Value, error) {
	return assertEqualCore(args, e, "", false)
}

func assertEqualMsg(args []term.Value, e *env.Environment) ([]term.Value, error) {
	return assertEqualCore(args, e, "", true)
}

// assertEqualToResult compares its first two argument values with
// Equal, exactly as assertEqual does; the second argument is not
// treated as a list of expected results, and the branches of a
// nondeterministic first argument are not gathered.
func assertEqualToResult(args []term.Value, e *env.Environment) ([]term.Value, error) {
	return assertEqualCore(args, e, "", false)
}

func assertEqualToResultMsg(args []term.Value, e *env.Environment) ([]term.Value, error) {
	return assertEqualCore(args, e, "", true)
}

func assertEqualCore(args []term.Value, _ *env.Environment, _ string, withMsg bool) ([]term.Value, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("assertEqual requires two arguments")
	}
	if args[0].Equal(args[1]) {
		return []term.Value{term.UnitV{}}, nil
	}
	msg := fmt.Sprintf("expected %s, got %s", args[1].String(), args[0].String())
	if withMsg && len(args) > 2 {
		msg = args[2].String() + ": " + msg
	}
	return []term.Value{term.NewError("assertion failed", term.String(msg))}, nil
}
