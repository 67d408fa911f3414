package harness

import (
	"strings"

	"github.com/roach88/tagbridge/internal/ir"
)

// Builtins are the host functions a scenario can register by name.
var Builtins = map[string]any{
	"inc":    func(x int32) int32 { return x + 1 },
	"concat": func(a string, rest ...string) string { return a + strings.Join(rest, "") },
	"halve":  func(x float32) float32 { return x / 2 },
}

// ManifestCalls implement functions declared in scenario manifests.
var ManifestCalls = map[string]ir.CallFunc{
	"neg": func(args []any) (any, error) {
		n, err := toInt64(args[0])
		if err != nil {
			return nil, err
		}
		return -n, nil
	},
	"max": func(args []any) (any, error) {
		a, err := toInt64(args[0])
		if err != nil {
			return nil, err
		}
		b, err := toInt64(args[1])
		if err != nil {
			return nil, err
		}
		return max(a, b), nil
	},
}

func toInt64(v any) (int64, error) {
	iv, err := ir.FromGo(v)
	if err != nil {
		return 0, err
	}
	n, ok := iv.(ir.Int)
	if !ok {
		return 0, ir.NewTupleShapeError("", -1, "expected an integer, got "+iv.String())
	}
	return int64(n), nil
}
