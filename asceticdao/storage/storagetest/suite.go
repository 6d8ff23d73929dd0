package storagetest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/storage"
)

// Database is the database name stores under test are opened with.
const Database = "default"

func compile(t *testing.T, filters map[string]any) query.IPredicate {
	t.Helper()
	pred, err := query.Compile(filters)
	require.NoError(t, err)
	return pred
}

func ids(records []storage.Record) []int64 {
	result := make([]int64, len(records))
	for i, r := range records {
		result[i] = r[storage.IDField].(int64)
	}
	return result
}

// Run exercises a freshly initialized store whose Database holds a "Person"
// model with a unique "email" field and no records.
func Run(t *testing.T, store storage.Store) {
	ctx := context.Background()
	handle, err := store.ResolveModel(ctx, Database, "Person")
	require.NoError(t, err)
	nested := func(path ...string) string { return strings.Join(path, store.PathSeparator()) }

	t.Run("create and get", func(t *testing.T) {
		created, err := handle.Create(ctx, storage.Record{"id": 99, "name": "John", "email": "john@example.com", "age": 31})
		require.NoError(t, err)
		id := created[storage.IDField].(int64)
		assert.NotEqual(t, int64(99), id)
		assert.Equal(t, int64(31), created["age"])

		got, err := handle.Get(ctx, compile(t, map[string]any{"id": id}))
		require.NoError(t, err)
		assert.Equal(t, created, got)

		_, err = handle.Get(ctx, compile(t, map[string]any{"name": "Nobody"}))
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("unique constraint", func(t *testing.T) {
		_, err := handle.Create(ctx, storage.Record{"name": "Clone", "email": "john@example.com"})
		assert.ErrorIs(t, err, storage.ErrConstraint)

		err = handle.BulkCreate(ctx, []storage.Record{
			{"name": "First", "email": "first@example.com"},
			{"name": "Clone", "email": "john@example.com"},
		})
		assert.ErrorIs(t, err, storage.ErrConstraint)
		exists, err := handle.Exists(ctx, compile(t, map[string]any{"email": "first@example.com"}))
		require.NoError(t, err)
		assert.False(t, exists, "bulk create is atomic")
	})

	t.Run("update and delete", func(t *testing.T) {
		john := compile(t, map[string]any{"name": "John"})
		updated, err := handle.Update(ctx, john, storage.Record{"age": 32, "employer": map[string]any{"name": "Acme"}})
		require.NoError(t, err)
		assert.Equal(t, int64(32), updated["age"])
		assert.Equal(t, "john@example.com", updated["email"])
		assert.Equal(t, map[string]any{"name": "Acme"}, updated["employer"])

		_, err = handle.Update(ctx, compile(t, map[string]any{"name": "Nobody"}), storage.Record{"age": 1})
		assert.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, handle.Delete(ctx, john))
		assert.ErrorIs(t, handle.Delete(ctx, john), storage.ErrNotFound)
	})

	t.Run("window and order", func(t *testing.T) {
		records := make([]storage.Record, 25)
		for i := range records {
			records[i] = storage.Record{"name": fmt.Sprintf("p%02d", i+1), "email": fmt.Sprintf("p%02d@example.com", i+1), "age": i + 1}
		}
		require.NoError(t, handle.BulkCreate(ctx, records))
		all := query.True()

		n, err := handle.Count(ctx, all)
		require.NoError(t, err)
		assert.Equal(t, int64(25), n)

		page, err := handle.Find(ctx, storage.NewQuery(all).OrderBy("age").Offset(10).Limit(10))
		require.NoError(t, err)
		require.Len(t, page, 10)
		for i, r := range page {
			assert.Equal(t, int64(11+i), r["age"])
		}

		desc, err := handle.Find(ctx, storage.NewQuery(compile(t, map[string]any{"age": "<=3"})).OrderBy("-age"))
		require.NoError(t, err)
		assert.Equal(t, []any{int64(3), int64(2), int64(1)}, []any{desc[0]["age"], desc[1]["age"], desc[2]["age"]})

		_, err = handle.Get(ctx, compile(t, map[string]any{"age": "<=3"}))
		assert.ErrorIs(t, err, storage.ErrMultipleRecords)

		n, err = handle.BulkUpdate(ctx, compile(t, map[string]any{"age": ">20"}), storage.Record{"senior": true})
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)
		n, err = handle.Count(ctx, compile(t, map[string]any{"senior": true}))
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)

		n, err = handle.BulkDelete(ctx, all)
		require.NoError(t, err)
		assert.Equal(t, int64(25), n)
	})

	t.Run("nulls sort last", func(t *testing.T) {
		require.NoError(t, handle.BulkCreate(ctx, []storage.Record{
			{"name": "b", "employer": map[string]any{"name": "Zeta"}},
			{"name": "a"},
			{"name": "c", "employer": map[string]any{"name": "Acme"}},
		}))
		asc, err := handle.Find(ctx, storage.NewQuery(nil).OrderBy(nested("employer", "name")))
		require.NoError(t, err)
		assert.Equal(t, []any{"c", "b", "a"}, []any{asc[0]["name"], asc[1]["name"], asc[2]["name"]})

		desc, err := handle.Find(ctx, storage.NewQuery(nil).OrderBy("-" + nested("employer", "name")))
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b", "c"}, []any{desc[0]["name"], desc[1]["name"], desc[2]["name"]})

		_, err = handle.BulkDelete(ctx, query.True())
		require.NoError(t, err)
	})

	t.Run("filters agree with the evaluator", func(t *testing.T) {
		AssertAgreesWithEvaluator(t, handle)
	})
}

// AssertAgreesWithEvaluator checks that handle and query.Matches select the same records.
// The model must be empty.
func AssertAgreesWithEvaluator(t *testing.T, handle storage.ModelHandle) {
	ctx := context.Background()
	records := []storage.Record{
		{"name": "Ann", "age": 31, "score": 4.5, "tags": []any{"a", "b"}, "active": true, "employer": map[string]any{"name": "Acme"}},
		{"name": "Bob", "age": 30, "score": 3, "tags": []any{"b"}, "active": false, "deleted": nil},
		{"name": "Cid", "age": "thirty", "employer": map[string]any{"name": "Zeta"}},
		{"name": "Dee", "deleted": "yes"},
		{"name": "Eve", "age": 18, "employer": "freelance"},
	}
	var stored []storage.Record
	for _, r := range records {
		created, err := handle.Create(ctx, r)
		require.NoError(t, err)
		stored = append(stored, created)
	}

	filters := []map[string]any{
		{},
		{"age": ">=30"},
		{"age": map[string]any{"$ne": 30}},
		{"age": map[string]any{"$nin": []any{30, nil}}},
		{"age": map[string]any{"$in": []any{30, "thirty"}}},
		{"age": map[string]any{"$gt": "x"}},
		{"name": map[string]any{"$in": []any{"Ann", "Bob"}}},
		{"employer.name": "Acme"},
		{"employer": map[string]any{"$ne": "freelance"}},
		{"deleted": nil},
		{"deleted": map[string]any{"$ne": nil}},
		{"tags": map[string]any{"$eq": []any{"a", "b"}}},
		{"active": true},
		{"active": map[string]any{"$ne": true}},
		{"score": map[string]any{"$lt": 4}},
		{"$or": []any{map[string]any{"age": map[string]any{"$lt": 20}}, map[string]any{"name": "Bob"}}},
		{"$and": []any{map[string]any{"age": ">18"}, map[string]any{"score": map[string]any{"$gte": 3}}}},
	}
	for _, f := range filters {
		t.Run(fmt.Sprint(f), func(t *testing.T) {
			pred := compile(t, f)
			var expected []int64
			for i, r := range records {
				ok, err := query.Matches(pred, r, nil)
				require.NoError(t, err)
				if ok {
					expected = append(expected, stored[i][storage.IDField].(int64))
				}
			}
			found, err := handle.Find(ctx, storage.NewQuery(pred))
			require.NoError(t, err)
			if len(expected) == 0 {
				assert.Empty(t, found)
				return
			}
			assert.Equal(t, expected, ids(found))
		})
	}
}
