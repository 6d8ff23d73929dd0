package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type employer struct {
	Name    string `json:"name"`
	Country string
}

type person struct {
	Name     string    `json:"name"`
	Age      int       `json:"age,omitempty"`
	Employer *employer `json:"employer"`
}

func mustMatch(t *testing.T, filters map[string]any, state any) bool {
	t.Helper()
	pred, err := Compile(filters)
	require.NoError(t, err)
	ok, err := Matches(pred, state, nil)
	require.NoError(t, err)
	return ok
}

func TestEvaluateComparisons(t *testing.T) {
	record := map[string]any{
		"name":     "John",
		"age":      json.Number("31"),
		"score":    4.5,
		"tags":     []any{"a", "b"},
		"employer": map[string]any{"name": "Acme"},
		"deleted":  nil,
	}

	assert.True(t, mustMatch(t, map[string]any{}, record))
	assert.True(t, mustMatch(t, map[string]any{"age": ">=30"}, record))
	assert.False(t, mustMatch(t, map[string]any{"age": "<31"}, record))
	assert.True(t, mustMatch(t, map[string]any{"score": map[string]any{"$gt": 4}}, record))
	assert.True(t, mustMatch(t, map[string]any{"employer.name": "Acme"}, record))
	assert.True(t, mustMatch(t, map[string]any{"name": map[string]any{"$in": []string{"Jane", "John"}}}, record))
	assert.False(t, mustMatch(t, map[string]any{"name": map[string]any{"$nin": []string{"Jane", "John"}}}, record))
	assert.True(t, mustMatch(t, map[string]any{"tags": map[string]any{"$eq": []any{"a", "b"}}}, record))
	assert.True(t, mustMatch(t, map[string]any{"deleted": nil}, record))
	assert.True(t, mustMatch(t, map[string]any{"missing": nil}, record))
	assert.True(t, mustMatch(t, map[string]any{"name": map[string]any{"$ne": nil}}, record))
	assert.True(t, mustMatch(t, map[string]any{"$or": []any{
		map[string]any{"name": "Jane"},
		map[string]any{"age": 31},
	}}, record))
}

func TestEvaluateNullSemantics(t *testing.T) {
	record := map[string]any{"name": "John"}

	// age is unknown: neither age > 30 nor its negation holds
	assert.False(t, mustMatch(t, map[string]any{"age": map[string]any{"$gt": 30}}, record))
	assert.False(t, mustMatch(t, map[string]any{"age": map[string]any{"$ne": 30}}, record))
	assert.False(t, mustMatch(t, map[string]any{"age": map[string]any{"$nin": []any{30}}}, record))

	// unknown OR true
	assert.True(t, mustMatch(t, map[string]any{"$or": []any{
		map[string]any{"age": map[string]any{"$gt": 30}},
		map[string]any{"name": "John"},
	}}, record))
}

func TestEvaluateMismatchedTypes(t *testing.T) {
	record := map[string]any{"age": "thirty"}

	assert.False(t, mustMatch(t, map[string]any{"age": map[string]any{"$gt": 30}}, record))
	assert.False(t, mustMatch(t, map[string]any{"age": 30}, record))
	assert.True(t, mustMatch(t, map[string]any{"age": map[string]any{"$ne": 30}}, record))
	assert.False(t, mustMatch(t, map[string]any{"age": map[string]any{"$lte": 30}}, record))
	assert.False(t, mustMatch(t, map[string]any{"$or": []any{map[string]any{"age": map[string]any{"$gt": 30}}}}, record))
}

func TestEvaluateMissingField(t *testing.T) {
	record := map[string]any{"name": "John"}

	assert.False(t, mustMatch(t, map[string]any{"tags": map[string]any{"$ne": []any{"a"}}}, record))
	assert.True(t, mustMatch(t, map[string]any{"age": map[string]any{"$ne": nil}, "name": "John"}, map[string]any{"name": "John", "age": 3}))
}

func TestEvaluateStructs(t *testing.T) {
	p := &person{Name: "John", Age: 40, Employer: &employer{Name: "Acme", Country: "NL"}}

	assert.True(t, mustMatch(t, map[string]any{"name": "John", "age": ">35"}, p))
	assert.True(t, mustMatch(t, map[string]any{"employer.name": "Acme"}, p))
	assert.True(t, mustMatch(t, map[string]any{"employer.Country": "NL"}, p))
	assert.False(t, mustMatch(t, map[string]any{"employer.name": "Other"}, p))

	orphan := &person{Name: "Jane"}
	assert.True(t, mustMatch(t, map[string]any{"employer.name": nil}, orphan))
}

func TestEvaluateVisitorResults(t *testing.T) {
	pred := Or()
	result, err := pred.Accept(NewEvaluateVisitor(map[string]any{}, nil))
	require.NoError(t, err)
	assert.Equal(t, false, result)

	result, err = True().Accept(NewEvaluateVisitor(map[string]any{}, nil))
	require.NoError(t, err)
	assert.Equal(t, true, result)

	pred2, err := Compile(map[string]any{"age": map[string]any{"$gt": 1}})
	require.NoError(t, err)
	result, err = pred2.Accept(NewEvaluateVisitor(map[string]any{"age": nil}, nil))
	require.NoError(t, err)
	assert.Nil(t, result)
}
