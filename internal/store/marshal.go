package store

import (
	"fmt"

	"github.com/roach88/dusa/internal/ir"
)

// marshalValue converts an IR value to canonical JSON TEXT for storage.
// Canonical form keeps stored solutions byte-comparable across runs.
func marshalValue(v ir.Value) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// unmarshalArray parses canonical JSON TEXT holding an array.
// ir.ParseValue keeps integers exact instead of going through float64.
func unmarshalArray(data string) (ir.Array, error) {
	v, err := ir.ParseValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal array: %w", err)
	}
	arr, ok := v.(ir.Array)
	if !ok {
		return nil, fmt.Errorf("unmarshal array: got %T", v)
	}
	return arr, nil
}

func unmarshalValue(data string) (ir.Value, error) {
	v, err := ir.ParseValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}
