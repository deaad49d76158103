package vm

import (
	"context"

	"github.com/mettalang/mork/pkg/bytecode"
	"github.com/mettalang/mork/pkg/term"
)

func (m *VM) curLocals() []term.Value {
	return m.locals[len(m.locals)-1]
}

// enterChunk pushes a new call frame and transfers control into c,
// starting at its first instruction. resumeIP/resumeChunk is where
// execution continues once c returns. bindings may be nil, in which case
// an empty frame is pushed (every frame, rule or not, owns a binding
// scope so PushBindingFrame/PopBindingFrame nest correctly).
func (m *VM) enterChunk(c *bytecode.Chunk, resumeIP int, resumeChunk *bytecode.Chunk, bindings *term.Bindings) error {
	if m.depth >= m.cfg.MaxDepth {
		return recoverable("depth exceeded", term.Long(m.depth))
	}
	m.depth++
	m.pushBindingFrame(bindings)
	m.calls = append(m.calls, frame{
		returnIP:     resumeIP,
		returnChunk:  resumeChunk,
		basePtr:      len(m.values),
		bindingsBase: len(m.bindings) - 1,
	})
	m.locals = append(m.locals, make([]term.Value, c.LocalCount))
	m.chunk = c
	m.ip = 0
	return nil
}

// leaveFrame pops the innermost call frame and its paired locals/binding
// scope, resuming the caller. Returns false if there is no frame (the
// top-level chunk is returning).
func (m *VM) leaveFrame() (frame, bool) {
	if len(m.calls) == 0 {
		return frame{}, false
	}
	f := m.calls[len(m.calls)-1]
	m.calls = m.calls[:len(m.calls)-1]
	m.locals = m.locals[:len(m.locals)-1]
	m.bindings = m.bindings[:f.bindingsBase]
	if m.depth > 0 {
		m.depth--
	}
	return f, true
}

// callSub runs sub to completion as a nested invocation sharing this
// VM's stacks (so a backtrack inside sub can still see choice points
// from the surrounding evaluation), pushing args as sub's first locals
// in the order given, and returns its single produced value. Used by
// the higher-order opcodes (map-atom/filter-atom/foldl-atom), each of
// which invokes its function operand once per element.
func (m *VM) callSub(ctx context.Context, sub *bytecode.Chunk, args []term.Value) (term.Value, error) {
	return m.callSubBound(ctx, sub, args, nil)
}

// callSubBound is callSub plus an initial binding set, used when the
// sub-invocation is itself a matched rule body (CallCached's per-match
// re-evaluation) rather than a bare higher-order function operand.
func (m *VM) callSubBound(ctx context.Context, sub *bytecode.Chunk, args []term.Value, bindings *term.Bindings) (term.Value, error) {
	savedCalls := len(m.calls)
	for _, a := range args {
		if err := m.push(a); err != nil {
			return nil, err
		}
	}
	if err := m.enterChunk(sub, m.ip, m.chunk, bindings); err != nil {
		return nil, err
	}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if m.chunk == nil {
			return nil, fatalf("sub-chunk halted unexpectedly")
		}
		done, err := m.step(ctx)
		if err != nil {
			if rec, ok := asRecoverable(err); ok {
				if !m.backtrack() {
					return rec, nil
				}
				continue
			}
			return nil, err
		}
		if done || len(m.calls) == savedCalls {
			break
		}
	}
	return m.pop()
}
