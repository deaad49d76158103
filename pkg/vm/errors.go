package vm

import "github.com/mettalang/mork/pkg/term"

// recoverableError wraps a term.Error so the interpreter loop can tell a
// user-recoverable runtime error (§7: type mismatch, division by zero,
// arity mismatch, depth/budget exceeded, missing binding) apart from a
// FatalError, which is never caught by case/catch.
type recoverableError struct {
	value term.Error
}

func (e *recoverableError) Error() string { return e.value.String() }

func recoverable(msg string, details term.Value) error {
	return &recoverableError{value: term.NewError(msg, details)}
}

func typeError(expected, got term.Value) error {
	return recoverable("type mismatch", term.SExpr{Elems: []term.Value{
		term.Atom("expected"), expected, term.Atom("got"), got,
	}})
}

func asRecoverable(err error) (term.Error, bool) {
	if re, ok := err.(*recoverableError); ok {
		return re.value, true
	}
	return term.Error{}, false
}
