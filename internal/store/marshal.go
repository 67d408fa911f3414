package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/tagbridge/internal/ir"
)

// marshalAction returns the canonical JSON body stored for a.
func marshalAction(a ir.Action) (string, error) {
	b, err := a.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal action %d: %w", a.Seq, err)
	}
	return string(b), nil
}

func unmarshalAction(body string) (ir.Action, error) {
	var a ir.Action
	if err := json.Unmarshal([]byte(body), &a); err != nil {
		return ir.Action{}, fmt.Errorf("unmarshal action: %w", err)
	}
	return a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
