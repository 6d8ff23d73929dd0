package mongostore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/schema"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/storage/storagetest"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/utils/testutils"
)

func TestMongoStore(t *testing.T) {
	uri, ok := testutils.MongoURI()
	if !ok {
		t.Skip("MONGO_URI is not set")
	}
	ctx := context.Background()
	registry, err := schema.NewRegistry(schema.Model{Name: "Person", Unique: []string{"email"}})
	require.NoError(t, err)

	// the suite addresses storagetest.Database, so each run gets its own client database
	store, err := Connect(ctx, uri, storagetest.Database, registry, 10*time.Second, "")
	require.NoError(t, err)
	store.db = store.client.Database("dao_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	t.Cleanup(func() {
		_ = store.db.Drop(ctx)
		_ = store.Close(ctx)
	})
	require.NoError(t, store.Init(ctx))

	storagetest.Run(t, store)
}
