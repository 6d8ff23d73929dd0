package query

import (
	"encoding/json"
	"reflect"
)

const operatorPrefix = "$"

// IsScalar reports whether value is a filter scalar: nil, a bool, a string or a number.
func IsScalar(value any) bool {
	switch value.(type) {
	case nil, bool, string, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// asSequence returns the elements of any slice or array value.
func asSequence(value any) ([]any, bool) {
	if list, ok := value.([]any); ok {
		return list, true
	}
	if value == nil {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list, true
}

func asMapping(value any) (map[string]any, bool) {
	m, ok := value.(map[string]any)
	return m, ok
}
