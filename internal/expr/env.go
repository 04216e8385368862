package expr

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// Environment compiles CEL expressions evaluated against one decoded API
// record, exposed as the variable item.
type Environment struct {
	env *cel.Env
}

// NewEnvironment declares the variables available to filter expressions:
// item (the record as decoded JSON) and now (evaluation time).
func NewEnvironment() (*Environment, error) {
	env, err := cel.NewEnv(
		cel.Variable("item", cel.DynType),
		cel.Variable("now", cel.TimestampType),
		cel.Function("lookup",
			cel.Overload("lookup_map_string",
				[]*cel.Type{cel.MapType(cel.StringType, cel.DynType), cel.StringType},
				cel.DynType,
				cel.BinaryBinding(lookupKey),
			),
		),
		cel.HomogeneousAggregateLiterals(),
	)
	if err != nil {
		return nil, fmt.Errorf("expr: build environment: %w", err)
	}
	return &Environment{env: env}, nil
}

// Program wraps a compiled CEL program that yields a boolean result.
type Program struct {
	source  string
	program cel.Program
}

// Compile prepares a predicate, rejecting expressions whose static type
// cannot be a boolean.
func (e *Environment) Compile(expression string) (Program, error) {
	src := strings.TrimSpace(expression)
	if src == "" {
		return Program{}, fmt.Errorf("expr: expression required")
	}
	ast, issues := e.env.Compile(src)
	if issues != nil && issues.Err() != nil {
		return Program{}, fmt.Errorf("expr: compile %q: %w", src, issues.Err())
	}
	if t := ast.OutputType(); t != cel.BoolType && t != cel.DynType {
		return Program{}, fmt.Errorf("expr: %q must return bool, got %s", src, cel.FormatCELType(t))
	}
	program, err := e.env.Program(ast)
	if err != nil {
		return Program{}, fmt.Errorf("expr: program %q: %w", src, err)
	}
	return Program{source: src, program: program}, nil
}

// Source returns the original CEL expression for logging.
func (p Program) Source() string { return p.source }

// Match evaluates the predicate for one record.
func (p Program) Match(item any, now time.Time) (bool, error) {
	if p.program == nil {
		return false, fmt.Errorf("expr: program not initialized")
	}
	out, _, err := p.program.Eval(map[string]any{"item": item, "now": now})
	if err != nil {
		return false, fmt.Errorf("expr: eval %q: %w", p.source, err)
	}
	if matched, ok := out.Value().(bool); ok {
		return matched, nil
	}
	return false, fmt.Errorf("expr: %q yielded %s, want bool", p.source, out.Type().TypeName())
}

func lookupKey(mapVal ref.Val, key ref.Val) ref.Val {
	m, ok := mapVal.(traits.Mapper)
	if !ok {
		return types.NewErr("expr: lookup requires a map, got %s", mapVal.Type().TypeName())
	}
	if v, found := m.Find(key); found && v != nil {
		return v
	}
	return types.NullValue
}
