// Package builtin holds the catalog of built-in predicates and functions:
// their arities, argument modes and documentation. The default catalog mirrors
// the upstream Mangle builtin tables and is read-only process-wide data.
package builtin

import (
	"sort"
	"strings"
	"sync"
)

// Variadic marks a built-in that accepts any number of arguments.
const Variadic = -1

// Mode describes how a built-in predicate uses one argument position.
type Mode int

const (
	// ModeInput arguments must be bound before the atom is evaluated.
	ModeInput Mode = iota
	// ModeOutput arguments are bound by the atom.
	ModeOutput
	// ModeAny arguments may be either.
	ModeAny
)

func (m Mode) String() string {
	switch m {
	case ModeInput:
		return "+"
	case ModeOutput:
		return "-"
	}
	return "?"
}

// ArgSpec describes one argument position.
type ArgSpec struct {
	Name string
	Mode Mode
}

// PredicateSpec describes a built-in predicate such as :lt.
type PredicateSpec struct {
	Name  string
	Arity int
	Args  []ArgSpec
	Doc   string
}

// IsFilter reports whether every argument is an input, i.e. the predicate
// only tests already-bound values.
func (p PredicateSpec) IsFilter() bool {
	if p.Arity == Variadic {
		return false
	}
	for _, a := range p.Args {
		if a.Mode != ModeInput {
			return false
		}
	}
	return true
}

// Signature renders name(A+, B-) for hover text.
func (p PredicateSpec) Signature() string {
	if p.Arity == Variadic {
		return p.Name + "(...)"
	}
	parts := make([]string, len(p.Args))
	for i, a := range p.Args {
		parts[i] = a.Name + a.Mode.String()
	}
	return p.Name + "(" + strings.Join(parts, ", ") + ")"
}

// FunctionSpec describes a built-in function such as fn:plus.
type FunctionSpec struct {
	Name    string
	Arity   int
	Reducer bool
	Doc     string
}

// Catalog indexes the built-in tables by name.
type Catalog struct {
	predicates map[string]PredicateSpec
	functions  map[string]FunctionSpec
}

var (
	defaultCatalog     *Catalog
	defaultCatalogOnce sync.Once
)

// Default returns the shared catalog.
func Default() *Catalog {
	defaultCatalogOnce.Do(func() {
		defaultCatalog = fromUpstream()
	})
	return defaultCatalog
}

// New builds a catalog from explicit tables.
func New(preds []PredicateSpec, fns []FunctionSpec) *Catalog {
	c := &Catalog{
		predicates: make(map[string]PredicateSpec, len(preds)),
		functions:  make(map[string]FunctionSpec, len(fns)),
	}
	for _, p := range preds {
		c.predicates[p.Name] = p
	}
	for _, f := range fns {
		c.functions[f.Name] = f
	}
	return c
}

// Predicate looks up a built-in predicate.
func (c *Catalog) Predicate(name string) (PredicateSpec, bool) {
	p, ok := c.predicates[name]
	return p, ok
}

// Function looks up a built-in function.
func (c *Catalog) Function(name string) (FunctionSpec, bool) {
	f, ok := c.functions[name]
	return f, ok
}

// Predicates returns all predicate specs sorted by name.
func (c *Catalog) Predicates() []PredicateSpec {
	out := make([]PredicateSpec, 0, len(c.predicates))
	for _, p := range c.predicates {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Functions returns all function specs sorted by name.
func (c *Catalog) Functions() []FunctionSpec {
	out := make([]FunctionSpec, 0, len(c.functions))
	for _, f := range c.functions {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ArityMatches reports whether n arguments satisfy the declared arity.
func ArityMatches(declared, n int) bool {
	return declared == Variadic || declared == n
}

// IsComparison reports whether name is one of :lt, :le, :gt, :ge.
func IsComparison(name string) bool {
	switch name {
	case ":lt", ":le", ":gt", ":ge":
		return true
	}
	return false
}

// GroupBy is the only function allowed in a do statement.
const GroupBy = "fn:group_by"
