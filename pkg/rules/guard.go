package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Facts are the values an applies_when expression can read. The engine builds
// them from the project under evaluation; see engine.ProjectFacts.
//
//	project.type == "commercial" && project.gross_floor_area_m2 > 500.0
type Facts struct {
	Project        map[string]any
	EvaluationDate string
}

var guardEnv *cel.Env

func init() {
	env, err := cel.NewEnv(
		cel.Variable("project", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("evaluation_date", cel.StringType),
	)
	if err != nil {
		panic(fmt.Sprintf("rules: build CEL environment: %v", err))
	}
	guardEnv = env
}

// Guard is a compiled applies_when expression.
type Guard struct {
	expr string
	prg  cel.Program
}

// CompileGuard compiles expr. The expression must be boolean.
func CompileGuard(expr string) (*Guard, error) {
	ast, issues := guardEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression yields %s, want bool", t)
	}
	prg, err := guardEnv.Program(ast, cel.CostLimit(10000))
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	return &Guard{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (g *Guard) String() string { return g.expr }

// Allows evaluates the guard. Programs are safe for concurrent use.
func (g *Guard) Allows(f Facts) (bool, error) {
	project := f.Project
	if project == nil {
		project = map[string]any{}
	}
	out, _, err := g.prg.Eval(map[string]any{
		"project":         project,
		"evaluation_date": f.EvaluationDate,
	})
	if err != nil {
		return false, fmt.Errorf("rules: applies_when %q: %w", g.expr, err)
	}
	v, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rules: applies_when %q: result not boolean", g.expr)
	}
	return v, nil
}
