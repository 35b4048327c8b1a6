package core

import (
	"fmt"

	"github.com/mohae/deepcopy"
)

// DeepCopyRow returns a deep copy of a row. Expansion clones rows before
// overriding column values, so the original batch is never mutated.
func DeepCopyRow(r Row) (Row, error) {
	if r == nil {
		return nil, nil
	}
	copied, err := deepCopyMap(map[string]any(r))
	if err != nil {
		return nil, err
	}
	return Row(copied), nil
}

func deepCopyMap(m map[string]any) (map[string]any, error) {
	copiedInterface := deepcopy.Copy(m)
	copied, ok := copiedInterface.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("failed to copy map")
	}
	return copied, nil
}
