package connect

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/config"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/infrastructure/memstore"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/infrastructure/mongostore"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/infrastructure/sqlstore"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/schema"
	pgsession "github.com/krew-solutions/ascetic-dao-go/asceticdao/session/pgx"
	sqlxsession "github.com/krew-solutions/ascetic-dao-go/asceticdao/session/sqlx"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/storage"
)

// sqliteDriver is the database/sql name modernc.org/sqlite registers.
const sqliteDriver = "sqlite"

// Connector opens the stores described by a database configuration.
type Connector struct {
	cfg      config.Database
	registry *schema.Registry
}

func FromConfig(cfg config.Database, registry *schema.Registry) *Connector {
	return &Connector{cfg: cfg, registry: registry}
}

var _ storage.Connector = (*Connector)(nil)

func (c *Connector) Connect(ctx context.Context) (storage.Handles, error) {
	switch c.cfg.Engine {
	case config.EngineMemory:
		store := memstore.New(c.registry, c.cfg.DatabaseName)
		return storage.Handles{Primary: store, Replica: store}, nil
	case config.EnginePostgres:
		return c.connectPair(ctx, c.cfg.Postgres.ReplicaURI, c.postgres)
	case config.EngineSQLite:
		return c.connectPair(ctx, c.cfg.SQLite.ReplicaURI, c.sqlite)
	case config.EngineMongo:
		return c.connectMongo(ctx)
	}
	return storage.Handles{}, fmt.Errorf("unsupported engine %q", c.cfg.Engine)
}

// connectPair opens the primary at ConnectionURI and, when replicaURI is set,
// a second store for reads.
func (c *Connector) connectPair(ctx context.Context, replicaURI string, open func(context.Context, string) (storage.Store, error)) (storage.Handles, error) {
	primary, err := open(ctx, c.cfg.ConnectionURI)
	if err != nil {
		return storage.Handles{}, err
	}
	if replicaURI == "" {
		return storage.Handles{Primary: primary, Replica: primary}, nil
	}
	replica, err := open(ctx, replicaURI)
	if err != nil {
		if closeErr := primary.Close(ctx); closeErr != nil {
			err = multierror.Append(err, closeErr)
		}
		return storage.Handles{}, err
	}
	return storage.Handles{Primary: primary, Replica: replica}, nil
}

func (c *Connector) postgres(ctx context.Context, uri string) (storage.Store, error) {
	pool, err := pgsession.Open(ctx, uri, c.cfg.Postgres.MaxConns)
	if err != nil {
		return nil, err
	}
	return sqlstore.New(pool, sqlstore.PostgresDialect{}, c.registry, c.cfg.DatabaseName), nil
}

func (c *Connector) sqlite(ctx context.Context, uri string) (storage.Store, error) {
	pool, err := sqlxsession.Open(ctx, sqliteDriver, SQLiteDSN(uri, c.cfg.SQLite.BusyTimeoutMs))
	if err != nil {
		return nil, err
	}
	// one writer at a time; an in-memory database also lives in a single connection
	pool.DB().SetMaxOpenConns(1)
	return sqlstore.New(pool, sqlstore.SQLiteDialect{}, c.registry, c.cfg.DatabaseName), nil
}

// SQLiteDSN appends the busy timeout pragma understood by modernc.org/sqlite.
func SQLiteDSN(uri string, busyTimeoutMs int) string {
	if busyTimeoutMs <= 0 {
		return uri
	}
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)", uri, sep, busyTimeoutMs)
}

func (c *Connector) connectMongo(ctx context.Context) (storage.Handles, error) {
	timeout := time.Duration(c.cfg.Mongo.ConnectTimeoutSec) * time.Second
	primary, err := mongostore.Connect(ctx, c.cfg.ConnectionURI, c.cfg.DatabaseName, c.registry, timeout, "")
	if err != nil {
		return storage.Handles{}, err
	}
	pref := c.cfg.Mongo.ReplicaReadPreference
	if pref == "" || pref == "primary" {
		return storage.Handles{Primary: primary, Replica: primary}, nil
	}
	replica, err := mongostore.Connect(ctx, c.cfg.ConnectionURI, c.cfg.DatabaseName, c.registry, timeout, pref)
	if err != nil {
		if closeErr := primary.Close(ctx); closeErr != nil {
			err = multierror.Append(err, closeErr)
		}
		return storage.Handles{}, errors.Wrap(err, "unable to open mongodb replica")
	}
	return storage.Handles{Primary: primary, Replica: replica}, nil
}
