// Command ancestors wires the term, env, fixpoint, and builtin packages
// together to run a small ancestor derivation: four `parent` facts
// spanning five generations, a direct-ancestor exec rule, and
// a transitive-closure exec rule, iterated to a fixed point. It takes
// no subcommands and reads no config file; the one flag it exposes
// bounds how many fixed-point passes the driver may take.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mettalang/mork/pkg/builtin"
	"github.com/mettalang/mork/pkg/env"
	"github.com/mettalang/mork/pkg/fixpoint"
	"github.com/mettalang/mork/pkg/term"
)

func main() {
	maxIterations := flag.Int("max-iterations", 10_000, "cap on fixed-point passes before giving up")
	flag.Parse()

	e := env.New()
	builtin.Register(e)
	seedFacts(e)

	d := fixpoint.New(e.Self())
	d.MaxIterations = *maxIterations

	res, err := d.Run(context.Background())
	if err != nil {
		log.Fatalf("ancestors: fixed-point run failed: %v", err)
	}
	if !res.Converged {
		fmt.Fprintf(os.Stderr, "ancestors: did not converge within %d iterations\n", *maxIterations)
	}

	fmt.Printf("converged after %d iterations, %d facts applied\n", res.Iterations, res.Applied)
	for _, a := range e.Self().Collapse() {
		s, ok := a.(term.SExpr)
		if !ok || len(s.Elems) == 0 {
			continue
		}
		if head, ok := s.Elems[0].(term.Atom); ok && head == "ancestor" {
			fmt.Println(a.String())
		}
	}
}

func seedFacts(e *env.Environment) {
	parents := [][2]string{
		{"Tom", "Bob"},
		{"Bob", "Ann"},
		{"Ann", "Pat"},
		{"Pat", "Jim"},
	}
	for _, p := range parents {
		e.Self().AddAtom(term.NewSExpr(term.Atom("parent"), term.Atom(p[0]), term.Atom(p[1])))
	}

	e.Self().AddAtom(term.NewSExpr(
		term.Atom("exec"), term.Long(1),
		term.NewSExpr(term.Atom("parent"), term.Atom("$x"), term.Atom("$y")),
		term.NewSExpr(term.Atom("ancestor"), term.Atom("$x"), term.Atom("$y")),
	))
	e.Self().AddAtom(term.NewSExpr(
		term.Atom("exec"), term.Long(1),
		term.Conjunction{Goals: []term.Value{
			term.NewSExpr(term.Atom("ancestor"), term.Atom("$x"), term.Atom("$y")),
			term.NewSExpr(term.Atom("parent"), term.Atom("$y"), term.Atom("$z")),
		}},
		term.NewSExpr(term.Atom("ancestor"), term.Atom("$x"), term.Atom("$z")),
	))
}
