package mongostore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query"
)

func compileFilter(t *testing.T, filters map[string]any) bson.D {
	t.Helper()
	pred, err := query.Compile(filters)
	require.NoError(t, err)
	f, err := NewPredicateCompiler().Compile(pred)
	require.NoError(t, err)
	return f
}

func TestPredicateCompiler(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, bson.D{}, compileFilter(t, map[string]any{}))
	})

	t.Run("eq", func(t *testing.T) {
		assert.Equal(t,
			and(field("name", bson.D{{Key: "$eq", Value: "John"}}), notArray("name")),
			compileFilter(t, map[string]any{"name": "John"}),
		)
	})

	t.Run("id", func(t *testing.T) {
		assert.Equal(t,
			and(field("_id", bson.D{{Key: "$gt", Value: int64(3)}}), notArray("_id")),
			compileFilter(t, map[string]any{"id": ">3"}),
		)
	})

	t.Run("null", func(t *testing.T) {
		assert.Equal(t,
			field("deleted", bson.D{{Key: "$eq", Value: nil}}),
			compileFilter(t, map[string]any{"deleted": nil}),
		)
		assert.Equal(t,
			field("deleted", bson.D{{Key: "$ne", Value: nil}}),
			compileFilter(t, map[string]any{"deleted": map[string]any{"$ne": nil}}),
		)
	})

	t.Run("negation is three-valued", func(t *testing.T) {
		assert.Equal(t,
			or(field("age", bson.D{{Key: "$type", Value: "array"}}), field("age", bson.D{{Key: "$nin", Value: []any{int64(30), nil}}})),
			compileFilter(t, map[string]any{"age": map[string]any{"$ne": 30}}),
		)
		assert.Equal(t,
			or(field("age", bson.D{{Key: "$type", Value: "array"}}), field("age", bson.D{{Key: "$nin", Value: []any{int64(30), nil}}})),
			compileFilter(t, map[string]any{"age": map[string]any{"$nin": []any{30}}}),
		)
	})

	t.Run("nin with null is never true", func(t *testing.T) {
		assert.Equal(t, never, compileFilter(t, map[string]any{"age": map[string]any{"$nin": []any{30, nil}}}))
	})

	t.Run("empty in", func(t *testing.T) {
		assert.Equal(t, never, compileFilter(t, map[string]any{"age": map[string]any{"$in": []any{}}}))
	})

	t.Run("and of fields", func(t *testing.T) {
		assert.Equal(t,
			and(
				and(field("age", bson.D{{Key: "$gte", Value: int64(30)}}), notArray("age")),
				and(field("employer.name", bson.D{{Key: "$eq", Value: "Acme"}}), notArray("employer.name")),
			),
			compileFilter(t, map[string]any{"age": ">=30", "employer.name": "Acme"}),
		)
	})
}
