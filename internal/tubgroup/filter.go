package tubgroup

import (
	"encoding/json"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/lmxia/pmlcar/internal/tub"
)

// rowFilter wraps a compiled CEL program deciding which rows enter the group
// index. When disabled, Eval always returns true.
//
// Expressions see the record's inline fields as `record` (media fields hold
// their resolved file path), the tub directory as `tub` and the record index
// as `index`, e.g.
//
//	record["user/throttle"] > 0.1 && record["user/mode"] == "user"
type rowFilter struct {
	prog    cel.Program
	enabled bool
}

func newRowFilter(expr string) (rowFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return rowFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("record", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("tub", cel.StringType),
		cel.Variable("index", cel.IntType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return rowFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return rowFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return rowFilter{}, iss2.Err()
	}
	if !checked.OutputType().IsExactType(cel.BoolType) {
		return rowFilter{}, &filterTypeError{expr: expr, got: checked.OutputType().String()}
	}
	prog, err := env.Program(checked)
	if err != nil {
		return rowFilter{}, err
	}
	return rowFilter{prog: prog, enabled: true}, nil
}

type filterTypeError struct {
	expr string
	got  string
}

func (e *filterTypeError) Error() string {
	return "tubgroup: filter " + e.expr + " evaluates to " + e.got + ", want bool"
}

// Eval evaluates the filter against one row. Evaluation errors, such as a
// missing key, exclude the row.
func (f rowFilter) Eval(tubPath string, ix int, schema tub.Schema, desc tub.Descriptor) bool {
	if !f.enabled {
		return true
	}
	out, _, err := f.prog.Eval(map[string]any{
		"record": celRecord(schema, desc),
		"tub":    tubPath,
		"index":  int64(ix),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// celRecord converts descriptor values to CEL-native types: json.Number
// becomes int64 or float64 following the declared kind.
func celRecord(schema tub.Schema, desc tub.Descriptor) map[string]any {
	out := make(map[string]any, len(desc))
	for k, v := range desc {
		n, ok := v.(json.Number)
		if !ok {
			out[k] = v
			continue
		}
		if f, known := schema.Lookup(k); !known || f.Kind != tub.KindFloat {
			if i, err := n.Int64(); err == nil {
				out[k] = i
				continue
			}
		}
		if fl, err := n.Float64(); err == nil {
			out[k] = fl
		} else {
			out[k] = n.String()
		}
	}
	return out
}
