package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/diverge/internal/op"
)

// encodeStorage renders a storage map as canonical JSON for persistence.
func encodeStorage(m map[string]any) (string, error) {
	if m == nil {
		m = map[string]any{}
	}
	b, err := op.MarshalCanonical(m)
	if err != nil {
		return "", fmt.Errorf("encode storage: %w", err)
	}
	return string(b), nil
}

// decodeStorage parses persisted storage JSON back into the canonical value
// space. Numbers decode to int64, never float64: the observable comparison
// is structural and must see the same types the model produces.
func decodeStorage(data string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode storage: %w", err)
	}
	v, err := intifyValue(raw)
	if err != nil {
		return nil, fmt.Errorf("decode storage: %w", err)
	}
	return v.(map[string]any), nil
}

func intifyValue(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integral number %q", val)
		}
		return n, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			conv, err := intifyValue(elem)
			if err != nil {
				return nil, err
			}
			out[k] = conv
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			conv, err := intifyValue(elem)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	default:
		return v, nil
	}
}
