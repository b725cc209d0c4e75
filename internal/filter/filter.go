package filter

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/ppdx999/tiny64/pkg/tiny64"
)

// Filter wraps a compiled CEL program evaluated against decoded ID fields.
// When built from an empty expression it is disabled and matches everything.
type Filter struct {
	prog    cel.Program
	enabled bool
}

// New compiles expr. Available variables:
//
//	ts_ms    int    embedded millisecond timestamp
//	sequence int    12-bit sequence counter
//	random   int    10-bit entropy field
//	age_ms   int    now_ms - ts_ms at evaluation time
//	now_ms   int    wall clock at evaluation time
//	text     string the 11-character encoded form
func New(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("sequence", cel.IntType),
		cel.Variable("random", cel.IntType),
		cel.Variable("age_ms", cel.IntType),
		cel.Variable("now_ms", cel.IntType),
		cel.Variable("text", cel.StringType),
	)
	if err != nil {
		return Filter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return Filter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return Filter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return Filter{}, err
	}
	return Filter{prog: prog, enabled: true}, nil
}

// Match evaluates the expression against one ID. Evaluation errors count as
// no match. When disabled, Match returns true.
func (f Filter) Match(id tiny64.ID) bool {
	if !f.enabled {
		return true
	}
	nowMs := time.Now().UnixMilli()
	tsMs := int64(id.TimestampMs())
	out, _, err := f.prog.Eval(map[string]any{
		"ts_ms":    tsMs,
		"sequence": int64(id.Sequence()),
		"random":   int64(id.Random()),
		"age_ms":   nowMs - tsMs,
		"now_ms":   nowMs,
		"text":     id.String(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
