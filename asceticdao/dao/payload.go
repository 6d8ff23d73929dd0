package dao

import (
	"regexp"
	"sort"
	"strings"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query/operators"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/storage"
)

var payloadKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func byID(id int64) query.IPredicate {
	return query.And(query.NewComparison(storage.IDField, operators.OperatorEq, id))
}

func validatePayloadKeys(fields Record) error {
	for key := range fields {
		if !payloadKeyPattern.MatchString(key) {
			return query.Invalidf("invalid field %s in record", key)
		}
	}
	return nil
}

// createPayload drops a caller supplied id; the storage engine assigns it.
func createPayload(record Record) (Record, error) {
	if err := validatePayloadKeys(record); err != nil {
		return nil, err
	}
	payload := make(Record, len(record))
	for k, v := range record {
		if k == storage.IDField {
			continue
		}
		payload[k] = v
	}
	return payload, nil
}

func validateUpdate(fields Record) error {
	if err := validatePayloadKeys(fields); err != nil {
		return err
	}
	if _, ok := fields[storage.IDField]; ok {
		return query.Invalidf("field %s cannot be updated", storage.IDField)
	}
	return nil
}

// lookupPredicate turns {"email": "a@b.c", "name": "Ann"} into AND of equalities.
func lookupPredicate(lookup map[string]any) (query.IPredicate, error) {
	if len(lookup) == 0 {
		return nil, query.Invalidf("lookup should not be empty")
	}
	keys := make([]string, 0, len(lookup))
	for key := range lookup {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	children := make([]query.IPredicate, 0, len(keys))
	for _, key := range keys {
		if !payloadKeyPattern.MatchString(key) {
			return nil, query.Invalidf("invalid key %s in lookup", key)
		}
		if key == storage.IDField {
			return nil, query.Invalidf("field %s cannot be used in lookup", storage.IDField)
		}
		value := lookup[key]
		if !query.IsScalar(value) {
			return nil, query.Invalidf("invalid value %v for key %s in lookup", value, key)
		}
		children = append(children, query.NewComparison(key, operators.OperatorEq, value))
	}
	return query.And(children...), nil
}

func isEmptySort(spec any) bool {
	switch s := spec.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	}
	return false
}
