package sqlx

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/session"
)

// executor is satisfied by both *sqlx.DB and *sqlx.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
	Rebind(query string) string
}

type Session struct {
	ctx  context.Context
	db   *sqlx.DB
	tx   *sqlx.Tx
	exec executor
	// depth counts open savepoints inside tx
	depth int
}

func NewSession(ctx context.Context, db *sqlx.DB) *Session {
	return &Session{ctx: ctx, db: db, exec: db}
}

func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) Connection() session.DbConnection {
	return &connection{ctx: s.ctx, exec: s.exec}
}

// Atomic runs callback in a transaction, or in a savepoint when s is
// already transactional.
func (s *Session) Atomic(callback session.SessionCallback) error {
	if s.tx != nil {
		return s.savepoint(callback)
	}
	tx, err := s.db.BeginTxx(s.ctx, nil)
	if err != nil {
		return errors.Wrap(err, "unable to start transaction")
	}
	err = callback(&Session{ctx: s.ctx, db: s.db, tx: tx, exec: tx})
	if err != nil {
		if txErr := tx.Rollback(); txErr != nil {
			return multierror.Append(err, txErr)
		}
		return err
	}
	if txErr := tx.Commit(); txErr != nil {
		return errors.Wrap(txErr, "failed to commit tx")
	}
	return nil
}

func (s *Session) savepoint(callback session.SessionCallback) error {
	name := fmt.Sprintf("sp_%d", s.depth+1)
	if _, err := s.tx.ExecContext(s.ctx, "SAVEPOINT "+name); err != nil {
		return errors.Wrap(err, "unable to start savepoint")
	}
	err := callback(&Session{ctx: s.ctx, db: s.db, tx: s.tx, exec: s.tx, depth: s.depth + 1})
	if err != nil {
		if _, txErr := s.tx.ExecContext(s.ctx, "ROLLBACK TO SAVEPOINT "+name); txErr != nil {
			return multierror.Append(err, txErr)
		}
		return err
	}
	if _, txErr := s.tx.ExecContext(s.ctx, "RELEASE SAVEPOINT "+name); txErr != nil {
		return errors.Wrap(txErr, "failed to release savepoint")
	}
	return nil
}

// connection rebinds "?" markers to the driver's placeholder style.
type connection struct {
	ctx  context.Context
	exec executor
}

func (c *connection) Exec(query string, args ...any) (session.Result, error) {
	query = c.exec.Rebind(query)
	if session.IsAutoincrementInsertQuery(query) {
		var id int64
		if err := c.exec.QueryRowxContext(c.ctx, query, args...).Scan(&id); err != nil {
			return nil, err
		}
		return session.NewResult(id, 0), nil
	}
	return c.exec.ExecContext(c.ctx, query, args...)
}

func (c *connection) Query(query string, args ...any) (session.Rows, error) {
	return c.exec.QueryxContext(c.ctx, c.exec.Rebind(query), args...)
}

func (c *connection) QueryRow(query string, args ...any) session.Row {
	return c.exec.QueryRowxContext(c.ctx, c.exec.Rebind(query), args...)
}
