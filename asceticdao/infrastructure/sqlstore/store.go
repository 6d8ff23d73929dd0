package sqlstore

import (
	"context"

	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/schema"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/session"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/storage"
)

// Store keeps every model in its own table of a relational database.
type Store struct {
	pool     session.SessionPool
	dialect  Dialect
	registry *schema.Registry
	database string
}

func New(pool session.SessionPool, dialect Dialect, registry *schema.Registry, database string) *Store {
	return &Store{
		pool:     pool,
		dialect:  dialect,
		registry: registry,
		database: database,
	}
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Init creates the tables and unique indexes of every registered model.
func (s *Store) Init(ctx context.Context) error {
	return s.connection(ctx, func(conn session.DbConnection) error {
		for _, m := range s.registry.Models() {
			if _, err := conn.Exec(s.dialect.CreateTable(m.Table)); err != nil {
				return errors.Wrapf(err, "unable to create table %s", m.Table)
			}
			for _, field := range m.Unique {
				if _, err := conn.Exec(s.dialect.CreateUniqueIndex(m.Table, field)); err != nil {
					return errors.Wrapf(err, "unable to create unique index on %s.%s", m.Table, field)
				}
			}
		}
		return nil
	})
}

func (s *Store) ResolveModel(_ context.Context, database, name string) (storage.ModelHandle, error) {
	if database != s.database {
		return nil, errors.Wrapf(storage.ErrModelNotFound, "unknown database %s", database)
	}
	m, ok := s.registry.Lookup(name)
	if !ok {
		return nil, errors.Wrapf(storage.ErrModelNotFound, "%s", name)
	}
	return &modelHandle{store: s, model: m}, nil
}

func (s *Store) PathSeparator() string {
	return PathSeparator
}

func (s *Store) Close(_ context.Context) error {
	return s.pool.Close()
}

func (s *Store) connection(ctx context.Context, callback func(session.DbConnection) error) error {
	return s.pool.Session(ctx, func(sess session.Session) error {
		return callback(sess.(session.DbSession).Connection())
	})
}

func (s *Store) atomic(ctx context.Context, callback func(session.DbConnection) error) error {
	return s.pool.Session(ctx, func(sess session.Session) error {
		return sess.Atomic(func(tx session.Session) error {
			return callback(tx.(session.DbSession).Connection())
		})
	})
}

// mapError converts constraint violations to storage.ErrConstraint.
func (s *Store) mapError(err error) error {
	if err != nil && s.dialect.IsConstraintViolation(err) {
		return errors.Wrap(storage.ErrConstraint, err.Error())
	}
	return err
}
