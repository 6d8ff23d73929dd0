package sqlx

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/session"
)

type SessionPool struct {
	db *sqlx.DB
}

func NewSessionPool(db *sqlx.DB) *SessionPool {
	return &SessionPool{db: db}
}

// Open connects with a database/sql driver registered under driverName.
func Open(ctx context.Context, driverName, dsn string) (*SessionPool, error) {
	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to connect to %s", driverName)
	}
	return NewSessionPool(db), nil
}

func (p *SessionPool) DB() *sqlx.DB {
	return p.db
}

func (p *SessionPool) Session(ctx context.Context, callback session.SessionPoolCallback) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return callback(NewSession(ctx, p.db))
}

func (p *SessionPool) Close() error {
	return p.db.Close()
}
