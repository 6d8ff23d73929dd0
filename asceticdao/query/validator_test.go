package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsValidFilters(t *testing.T) {
	cases := map[string]map[string]any{
		"empty":           {},
		"scalars":         {"name": "John", "age": 30, "score": 1.5, "active": true, "deleted_at": nil},
		"dotted field":    {"employer.name": "Acme"},
		"operator map":    {"age": map[string]any{"$gte": 30, "$lt": 40}},
		"in list":         {"status": map[string]any{"$in": []any{"a", "b"}}},
		"typed in list":   {"id": map[string]any{"$nin": []int{1, 2}}},
		"eq with list":    {"column1": map[string]any{"$eq": []any{"value1"}}},
		"inline compare":  {"age": ">=30"},
		"and/or":          {"$and": []any{map[string]any{"a": 1}}, "$or": []map[string]any{{"b": 2}, {"c": 3}}},
		"nested combiner": {"$or": []any{map[string]any{"$and": []any{map[string]any{"x": 1}}}}},
	}
	for name, filters := range cases {
		t.Run(name, func(t *testing.T) {
			result, err := Validate(filters)
			require.NoError(t, err)
			assert.Equal(t, filters, result)

			again, err := Validate(result)
			require.NoError(t, err)
			assert.Equal(t, result, again)
		})
	}
}

func TestValidateRejectsInvalidFilters(t *testing.T) {
	cases := []struct {
		name    string
		filters map[string]any
		message string
	}{
		{"bad field", map[string]any{"1name": "x"}, "invalid key 1name in filter"},
		{"injection", map[string]any{"name; DROP TABLE users": "x"}, "invalid key name; DROP TABLE users in filter"},
		{"unknown operator", map[string]any{"age": map[string]any{"$equals": 1}}, "invalid key $equals in filter"},
		{"bare list", map[string]any{"name": []any{"a"}}, "invalid value [a] in filter"},
		{"struct value", map[string]any{"name": struct{}{}}, "invalid value {} in filter"},
		{"in scalar", map[string]any{"id": map[string]any{"$in": 1}}, "value for $in should be of type list"},
		{"nin scalar", map[string]any{"id": map[string]any{"$nin": "x"}}, "value for $nin should be of type list"},
		{"and scalar", map[string]any{"$and": 1}, "value for $and should be of type list"},
		{"or scalar", map[string]any{"$or": map[string]any{"a": 1}}, "value for $or should be of type list"},
		{"or member", map[string]any{"$or": []any{"a"}}, "invalid value a in filter"},
		{"nested bad key", map[string]any{"$and": []any{map[string]any{"bad-key": 1}}}, "invalid key bad-key in filter"},
		{"operator map value", map[string]any{"age": map[string]any{"$gt": map[string]any{"x": 1}}}, "invalid value map[x:1] in filter"},
		{"in member", map[string]any{"id": map[string]any{"$in": []any{[]any{1}}}}, "invalid value [1] in filter"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Validate(c.filters)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidQuery))
			assert.EqualError(t, err, c.message)
		})
	}
}

func TestIsValidField(t *testing.T) {
	assert.True(t, IsValidField("employer.name"))
	assert.True(t, IsValidField("_id"))
	assert.False(t, IsValidField(""))
	assert.False(t, IsValidField("-name"))
	assert.False(t, IsValidField("a b"))
}
