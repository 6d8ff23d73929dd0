package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAutoincrementInsertQuery(t *testing.T) {
	assert.True(t, IsAutoincrementInsertQuery(`INSERT INTO "users" ("value") VALUES ($1) RETURNING "id"`))
	assert.True(t, IsAutoincrementInsertQuery("insert into users (value) values (?) returning id;"))
	assert.False(t, IsAutoincrementInsertQuery(`INSERT INTO "users" ("value") VALUES ($1)`))
	assert.False(t, IsAutoincrementInsertQuery(`UPDATE "users" SET "value" = $1 RETURNING "id"`))
}

func TestResult(t *testing.T) {
	insert := NewResult(7, 0)
	id, err := insert.LastInsertId()
	assert.NoError(t, err)
	assert.Equal(t, int64(7), id)
	_, err = insert.RowsAffected()
	assert.Error(t, err)

	update := NewResult(0, 3)
	n, err := update.RowsAffected()
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	_, err = update.LastInsertId()
	assert.Error(t, err)
}
