package builtin

import (
	"fmt"

	mast "github.com/google/mangle/ast"
	mbuiltin "github.com/google/mangle/builtin"
)

// fromUpstream builds the catalog from the upstream Mangle builtin tables so
// names, arities, modes and reducer flags agree with the reference
// evaluator. The local tables only contribute docs and argument names.
func fromUpstream() *Catalog {
	localPreds := make(map[string]PredicateSpec, len(predicateTable))
	for _, p := range predicateTable {
		localPreds[p.Name] = p
	}
	localFns := make(map[string]FunctionSpec, len(functionTable))
	for _, f := range functionTable {
		localFns[f.Name] = f
	}

	preds := make([]PredicateSpec, 0, len(mbuiltin.Predicates))
	for sym, mode := range mbuiltin.Predicates {
		local, known := localPreds[sym.Symbol]
		spec := PredicateSpec{Name: sym.Symbol, Arity: sym.Arity, Doc: local.Doc}
		if spec.Doc == "" {
			spec.Doc = "Built-in predicate."
		}
		spec.Args = make([]ArgSpec, len(mode))
		for i, m := range mode {
			name := fmt.Sprintf("Arg%d", i+1)
			if known && i < len(local.Args) {
				name = local.Args[i].Name
			}
			spec.Args[i] = ArgSpec{Name: name, Mode: modeOf(m)}
		}
		preds = append(preds, spec)
	}

	// mbuiltin.Functions already contains the reducers.
	fns := make([]FunctionSpec, 0, len(mbuiltin.Functions))
	for sym := range mbuiltin.Functions {
		spec := FunctionSpec{
			Name:    sym.Symbol,
			Arity:   sym.Arity,
			Reducer: mbuiltin.IsReducerFunction(sym),
			Doc:     localFns[sym.Symbol].Doc,
		}
		if spec.Arity < 0 {
			spec.Arity = Variadic
		}
		if spec.Doc == "" {
			spec.Doc = "Built-in function."
		}
		fns = append(fns, spec)
	}
	return New(preds, fns)
}

func modeOf(m mast.ArgMode) Mode {
	switch m {
	case mast.ArgModeInput:
		return ModeInput
	case mast.ArgModeOutput:
		return ModeOutput
	}
	return ModeAny
}
