package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query/operators"
)

func TestCompileEmpty(t *testing.T) {
	pred, err := Compile(map[string]any{})
	require.NoError(t, err)
	assert.True(t, IsTrue(pred))
	assert.True(t, pred.Equal(True()))
}

func TestCompileScenario(t *testing.T) {
	filters := map[string]any{
		"name": "John",
		"age":  map[string]any{"$gte": 30},
		"$and": []any{
			map[string]any{"city": "New York"},
			map[string]any{"status": map[string]any{"$ne": "inactive"}},
		},
	}

	pred, err := Compile(filters)
	require.NoError(t, err)

	expected := And(
		NewComparison("age", operators.OperatorGte, 30),
		NewComparison("name", operators.OperatorEq, "John"),
		And(
			NewComparison("city", operators.OperatorEq, "New York"),
			Not(NewComparison("status", operators.OperatorEq, "inactive")),
		),
	)
	assert.True(t, expected.Equal(pred), "got %s", pred)

	t.Run("matches", func(t *testing.T) {
		ok, err := Matches(pred, map[string]any{"name": "John", "age": 31, "city": "New York", "status": "active"}, nil)
		require.NoError(t, err)
		assert.True(t, ok)
	})
	t.Run("too young", func(t *testing.T) {
		ok, err := Matches(pred, map[string]any{"name": "John", "age": 29, "city": "New York", "status": "active"}, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})
	t.Run("inactive", func(t *testing.T) {
		ok, err := Matches(pred, map[string]any{"name": "John", "age": 40, "city": "New York", "status": "inactive"}, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCompileInlineComparison(t *testing.T) {
	cases := []struct {
		inline   string
		operator string
		value    any
	}{
		{">=30", "$gte", 30},
		{">30", "$gt", 30},
		{"<=30", "$lte", 30},
		{"<2.5", "$lt", 2.5},
		{"!=7", "$ne", 7},
		{"=7", "$eq", 7},
		{">=30", "$gte", int32(30)},
		{"<2.5", "$lt", float32(2.5)},
	}
	for _, c := range cases {
		t.Run(c.inline, func(t *testing.T) {
			inline, err := Compile(map[string]any{"age": c.inline})
			require.NoError(t, err)
			explicit, err := Compile(map[string]any{"age": map[string]any{c.operator: c.value}})
			require.NoError(t, err)
			assert.True(t, inline.Equal(explicit), "%s != %s", inline, explicit)
		})
	}
}

func TestCompileInlineNotANumber(t *testing.T) {
	_, err := Compile(map[string]any{"age": ">=abc"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.ErrorIs(t, err, ErrNotANumber)
	assert.EqualError(t, err, "the provided string abc is not a number")
}

func TestCompileOperators(t *testing.T) {
	pred, err := Compile(map[string]any{
		"age":    map[string]any{"$gt": 1, "$lte": 9},
		"id":     map[string]any{"$nin": []int{1, 2}},
		"status": map[string]any{"$in": []any{"a"}},
	})
	require.NoError(t, err)

	expected := And(
		NewComparison("age", operators.OperatorGt, 1),
		NewComparison("age", operators.OperatorLte, 9),
		Not(NewComparison("id", operators.OperatorIn, []any{1, 2})),
		NewComparison("status", operators.OperatorIn, []any{"a"}),
	)
	assert.True(t, expected.Equal(pred), "got %s", pred)
}

func TestCompileOr(t *testing.T) {
	pred, err := Compile(map[string]any{
		"$or": []any{
			map[string]any{"a": 1},
			map[string]any{"b": 2, "c": 3},
		},
	})
	require.NoError(t, err)

	expected := And(Or(
		NewComparison("a", operators.OperatorEq, 1),
		And(
			NewComparison("b", operators.OperatorEq, 2),
			NewComparison("c", operators.OperatorEq, 3),
		),
	))
	assert.True(t, expected.Equal(pred), "got %s", pred)
}

func TestCompileRejects(t *testing.T) {
	cases := []struct {
		name    string
		filters map[string]any
		message string
	}{
		{"combinator under field", map[string]any{"age": map[string]any{"$and": []any{}}}, "unsupported operator $and for field age"},
		{"nested field under field", map[string]any{"employer": map[string]any{"name": "x"}}, "unsupported operator name for field employer"},
		{"list for gt", map[string]any{"age": map[string]any{"$gt": []any{1}}}, "value for $gt should be a scalar"},
		{"operator without field", map[string]any{"$eq": 1}, "operator $eq requires a field"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Compile(c.filters)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidQuery)
			assert.EqualError(t, err, c.message)
		})
	}
}

func TestCompileIdempotent(t *testing.T) {
	filters := map[string]any{
		"z":    1,
		"a":    map[string]any{"$lt": 3, "$gt": 1, "$ne": 2},
		"$or":  []any{map[string]any{"x": "1"}, map[string]any{"y": ">1"}},
		"$and": []any{map[string]any{"m": nil}},
	}
	first, err := Compile(filters)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Compile(filters, AlreadyValidated())
		require.NoError(t, err)
		assert.True(t, first.Equal(again))
		assert.Equal(t, first.String(), again.String())
	}
}

func TestCompileValidatesUnlessTold(t *testing.T) {
	filters := map[string]any{"bad key": 1}

	_, err := Compile(filters)
	assert.EqualError(t, err, "invalid key bad key in filter")
}

func TestParseNumber(t *testing.T) {
	n, err := ParseNumber("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	n, err = ParseNumber("-4.25")
	require.NoError(t, err)
	assert.Equal(t, -4.25, n)

	_, err = ParseNumber("abc")
	assert.ErrorIs(t, err, ErrNotANumber)
	assert.EqualError(t, err, "the provided string abc is not a number")
}

func TestParseExpressionOrdersTerms(t *testing.T) {
	expr, err := ParseExpression(map[string]any{
		"$or":  []any{map[string]any{"b": 1}},
		"name": "x",
		"$and": []any{map[string]any{"a": 1}},
		"age":  map[string]any{"$lt": 5, "$gt": 1},
	})
	require.NoError(t, err)
	require.Len(t, expr.Terms, 4)

	assert.Equal(t, OperatorTerm{Field: "age", Operators: []OperatorValue{{"$gt", 1}, {"$lt", 5}}}, expr.Terms[0])
	assert.Equal(t, FieldTerm{Field: "name", Value: "x"}, expr.Terms[1])
	assert.Equal(t, CombinatorAnd, expr.Terms[2].(CombinatorTerm).Combinator)
	assert.Equal(t, CombinatorOr, expr.Terms[3].(CombinatorTerm).Combinator)
}
