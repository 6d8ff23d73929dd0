package storage

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query/operators"
)

// EncodeJSON renders the fields of r, without IDField, as a JSON object.
func EncodeJSON(r Record) ([]byte, error) {
	doc := make(map[string]any, len(r))
	for k, v := range r {
		if k != IDField {
			doc[k] = v
		}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode record")
	}
	return data, nil
}

// DecodeJSON parses a JSON object. Numbers become int64 when integral and float64 otherwise.
func DecodeJSON(data []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "unable to decode record")
	}
	if doc == nil {
		return Record{}, nil
	}
	return normalizeValue(doc).(map[string]any), nil
}

// Canonical returns a deep copy of r holding only JSON-representable values,
// as a database would return it.
func Canonical(r Record) (Record, error) {
	data, err := EncodeJSON(r)
	if err != nil {
		return nil, err
	}
	out, err := DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	if id, ok := r[IDField]; ok {
		out[IDField] = id
	}
	return out, nil
}

func normalizeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		for k, item := range v {
			v[k] = normalizeValue(item)
		}
		return v
	case []any:
		for i, item := range v {
			v[i] = normalizeValue(item)
		}
		return v
	}
	return operators.Normalize(value)
}
