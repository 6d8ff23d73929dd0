package sqlstore

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/schema"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/session"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/storage/storagetest"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/utils/testutils"
)

func TestPostgresStore(t *testing.T) {
	pool := testutils.NewPgSessionPool(t)
	table := "people_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	registry, err := schema.NewRegistry(schema.Model{Name: "Person", Table: table, Unique: []string{"email"}})
	require.NoError(t, err)

	store := New(pool, PostgresDialect{}, registry, testDatabase)
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() {
		_ = pool.Session(context.Background(), func(s session.Session) error {
			_, err := s.(session.DbSession).Connection().Exec("DROP TABLE IF EXISTS " + quoteIdent(table))
			return err
		})
	})

	storagetest.Run(t, store)
}
