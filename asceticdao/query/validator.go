package query

import (
	"regexp"
	"sort"
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

var allowedOperators = map[string]struct{}{
	"$eq": {}, "$ne": {}, "$gt": {}, "$gte": {}, "$lt": {}, "$lte": {},
	"$in": {}, "$nin": {}, "$and": {}, "$or": {},
}

// IsValidField reports whether name may be used as a field path.
func IsValidField(name string) bool {
	return fieldPattern.MatchString(name)
}

// Validate checks filters against the filter grammar and returns them unchanged.
func Validate(filters map[string]any) (map[string]any, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}
	return filters, nil
}

func validateFilters(filters map[string]any) error {
	for _, key := range sortedKeys(filters) {
		value := filters[key]
		if _, ok := allowedOperators[key]; ok {
			if err := validateOperator(key, value); err != nil {
				return err
			}
			continue
		}
		if !fieldPattern.MatchString(key) {
			return Invalidf("invalid key %s in filter", key)
		}
		if nested, ok := asMapping(value); ok {
			if err := validateFilters(nested); err != nil {
				return err
			}
			continue
		}
		if !IsScalar(value) {
			return Invalidf("invalid value %v in filter", value)
		}
	}
	return nil
}

func validateOperator(key string, value any) error {
	switch key {
	case "$in", "$nin":
		list, ok := asSequence(value)
		if !ok {
			return Invalidf("value for %s should be of type list", key)
		}
		return validateScalars(list)
	case "$and", "$or":
		list, ok := asSequence(value)
		if !ok {
			return Invalidf("value for %s should be of type list", key)
		}
		for _, member := range list {
			nested, ok := asMapping(member)
			if !ok {
				return Invalidf("invalid value %v in filter", member)
			}
			if err := validateFilters(nested); err != nil {
				return err
			}
		}
		return nil
	}
	if list, ok := asSequence(value); ok {
		return validateScalars(list)
	}
	if !IsScalar(value) {
		return Invalidf("invalid value %v in filter", value)
	}
	return nil
}

func validateScalars(list []any) error {
	for _, item := range list {
		if !IsScalar(item) {
			return Invalidf("invalid value %v in filter", item)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
