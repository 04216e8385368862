package expr

import (
	"encoding/json"
	"fmt"
	"time"
)

// Generic converts a typed value into the map/slice form CEL understands by
// round-tripping it through JSON.
func Generic(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("expr: encode: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("expr: decode: %w", err)
	}
	return out, nil
}

// Filter keeps the elements of list for which p matches. A value that is not
// a list is tested as a single record and returned as-is or as null.
func (p Program) Filter(list any, now time.Time) (any, error) {
	generic, err := Generic(list)
	if err != nil {
		return nil, err
	}
	items, ok := generic.([]any)
	if !ok {
		matched, err := p.Match(generic, now)
		if err != nil || !matched {
			return nil, err
		}
		return generic, nil
	}
	kept := make([]any, 0, len(items))
	for _, item := range items {
		matched, err := p.Match(item, now)
		if err != nil {
			return nil, err
		}
		if matched {
			kept = append(kept, item)
		}
	}
	return kept, nil
}
