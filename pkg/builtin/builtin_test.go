package builtin

import (
	"bytes"
	"testing"

	"github.com/mettalang/mork/pkg/env"
	"github.com/mettalang/mork/pkg/term"
)

func TestRegisterInstallsEveryBuiltin(t *testing.T) {
	e := env.New()
	Register(e)
	names := []string{"println!", "trace!", "nop", "assertEqual", "assertEqualMsg",
		"assertEqualToResult", "assertEqualToResultMsg"}
	for _, n := range names {
		if _, ok := e.LookupExternal(n); !ok {
			t.Errorf("expected %q to be registered", n)
		}
	}
}

func TestAssertEqualSuccess(t *testing.T) {
	got, err := assertEqual([]term.Value{term.Long(5), term.Long(5)}, nil)
	if err != nil {
		t.Fatalf("assertEqual: %v", err)
	}
	if len(got) != 1 || !got[0].Equal(term.UnitV{}) {
		t.Errorf("assertEqual(5,5) = %v, want [Unit]", got)
	}
}

func TestAssertEqualFailureProducesError(t *testing.T) {
	got, err := assertEqual([]term.Value{term.Long(5), term.Long(6)}, nil)
	if err != nil {
		t.Fatalf("assertEqual: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one result, got %d", len(got))
	}
	if _, ok := got[0].(term.Error); !ok {
		t.Errorf("expected a first-class Error value, got %v", got[0])
	}
}

func TestAssertEqualMsgPrependsMessage(t *testing.T) {
	got, err := assertEqualMsg([]term.Value{term.Long(1), term.Long(2), term.String("custom")}, nil)
	if err != nil {
		t.Fatalf("assertEqualMsg: %v", err)
	}
	errVal, ok := got[0].(term.Error)
	if !ok {
		t.Fatalf("expected an Error value, got %v", got[0])
	}
	if s := errVal.Details.String(); s == "" {
		t.Error("expected the error details to carry the formatted message")
	}
}

func TestTraceWritesAndPassesThroughValue(t *testing.T) {
	var buf bytes.Buffer
	old := traceWriter
	traceWriter = &buf
	defer func() { traceWriter = old }()

	got, err := trace([]term.Value{term.Atom("checkpoint"), term.Long(7)}, nil)
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if len(got) != 1 || !got[0].Equal(term.Long(7)) {
		t.Errorf("trace(label, 7) = %v, want [7]", got)
	}
	if buf.String() != "checkpoint\n" {
		t.Errorf("trace wrote %q, want %q", buf.String(), "checkpoint\n")
	}
}

func TestNopReturnsUnit(t *testing.T) {
	got, err := nop(nil, nil)
	if err != nil {
		t.Fatalf("nop: %v", err)
	}
	if len(got) != 1 || !got[0].Equal(term.UnitV{}) {
		t.Errorf("nop() = %v, want [Unit]", got)
	}
}
