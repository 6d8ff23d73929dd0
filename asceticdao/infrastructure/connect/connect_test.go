package connect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/config"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/infrastructure/memstore"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/infrastructure/sqlstore"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/schema"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/storage"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/utils/testutils"
)

func newRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	registry, err := schema.NewRegistry(schema.Model{Name: "Person"})
	require.NoError(t, err)
	return registry
}

func TestConnectMemory(t *testing.T) {
	handles, err := FromConfig(config.Database{Engine: config.EngineMemory, DatabaseName: "default"}, newRegistry(t)).
		Connect(context.Background())
	require.NoError(t, err)

	assert.IsType(t, &memstore.Store{}, handles.Primary)
	assert.Same(t, handles.Primary, handles.Replica)
	assert.NoError(t, handles.Close(context.Background()))
}

func TestConnectSQLiteReplica(t *testing.T) {
	ctx := context.Background()
	path := testutils.SQLitePath(t)
	cfg := config.Database{
		Engine:        config.EngineSQLite,
		ConnectionURI: path,
		DatabaseName:  "default",
		SQLite:        config.SQLite{ReplicaURI: path, BusyTimeoutMs: 1000},
	}
	handles, err := FromConfig(cfg, newRegistry(t)).Connect(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = handles.Close(ctx) })

	assert.IsType(t, &sqlstore.Store{}, handles.Replica)
	assert.NotSame(t, handles.Primary, handles.Replica)
	require.NoError(t, handles.Init(ctx))

	writer, err := handles.Primary.ResolveModel(ctx, "default", "Person")
	require.NoError(t, err)
	_, err = writer.Create(ctx, storage.Record{"name": "John"})
	require.NoError(t, err)

	reader, err := handles.Replica.ResolveModel(ctx, "default", "Person")
	require.NoError(t, err)
	n, err := reader.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestConnectUnsupportedEngine(t *testing.T) {
	_, err := FromConfig(config.Database{Engine: "oracle"}, newRegistry(t)).Connect(context.Background())
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "dao.db", SQLiteDSN("dao.db", 0))
	assert.Equal(t, "dao.db?_pragma=busy_timeout(500)", SQLiteDSN("dao.db", 500))
	assert.Equal(t, "file:dao.db?mode=rwc&_pragma=busy_timeout(500)", SQLiteDSN("file:dao.db?mode=rwc", 500))
}
