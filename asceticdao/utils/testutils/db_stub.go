package testutils

import (
	"context"
	"errors"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/session"
)

// SessionPoolStub records every statement instead of executing it.
type SessionPoolStub struct {
	Queries [][]any
	Rows    *RowsStub
	closed  bool
}

func NewSessionPoolStub(rows *RowsStub) *SessionPoolStub {
	if rows == nil {
		rows = NewRowsStub()
	}
	return &SessionPoolStub{Rows: rows}
}

// Statements returns the recorded SQL texts in order.
func (p *SessionPoolStub) Statements() []string {
	result := make([]string, len(p.Queries))
	for i, q := range p.Queries {
		result[i] = q[0].(string)
	}
	return result
}

func (p *SessionPoolStub) Session(ctx context.Context, callback session.SessionPoolCallback) error {
	return callback(&DbSessionStub{ctx: ctx, pool: p})
}

func (p *SessionPoolStub) Close() error {
	p.closed = true
	return nil
}

func (p *SessionPoolStub) Closed() bool {
	return p.closed
}

type DbSessionStub struct {
	ctx  context.Context
	pool *SessionPoolStub
}

func (s *DbSessionStub) Context() context.Context {
	return s.ctx
}

func (s *DbSessionStub) Atomic(callback session.SessionCallback) error {
	return callback(s)
}

func (s *DbSessionStub) Connection() session.DbConnection {
	return &connectionStub{pool: s.pool}
}

type connectionStub struct {
	pool *SessionPoolStub
}

func (c *connectionStub) record(query string, args []any) {
	c.pool.Queries = append(c.pool.Queries, append([]any{query}, args...))
}

func (c *connectionStub) Exec(query string, args ...any) (session.Result, error) {
	c.record(query, args)
	if session.IsAutoincrementInsertQuery(query) {
		return session.NewResult(int64(len(c.pool.Queries)), 0), nil
	}
	return session.NewResult(0, 0), nil
}

func (c *connectionStub) Query(query string, args ...any) (session.Rows, error) {
	c.record(query, args)
	return c.pool.Rows, nil
}

func (c *connectionStub) QueryRow(query string, args ...any) session.Row {
	c.record(query, args)
	return c.pool.Rows
}

// RowsStub serves fixed rows; Scan supports *int64 and *string columns.
type RowsStub struct {
	rows [][]any
	idx  int
}

func NewRowsStub(rows ...[]any) *RowsStub {
	return &RowsStub{rows: rows, idx: -1}
}

func (r *RowsStub) Close() error {
	return nil
}

func (r *RowsStub) Err() error {
	return nil
}

func (r *RowsStub) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *RowsStub) Scan(dest ...any) error {
	if r.idx < 0 {
		// QueryRow scans without Next.
		r.idx = 0
	}
	if r.idx >= len(r.rows) {
		return errors.New("no current row")
	}
	for i, val := range r.rows[r.idx] {
		if i >= len(dest) {
			break
		}
		switch d := dest[i].(type) {
		case *int64:
			*d = val.(int64)
		case *string:
			*d = val.(string)
		default:
			return errors.New("unsupported scan type")
		}
	}
	return nil
}
