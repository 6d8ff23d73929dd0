package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query/operators"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/schema"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/session"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/storage"
)

type modelHandle struct {
	store *Store
	model schema.Model
}

func (h *modelHandle) table() string {
	return quoteIdent(h.model.Table)
}

func (h *modelHandle) where(pred query.IPredicate) (string, []any, error) {
	sql, params, err := NewPredicateCompiler(h.store.dialect).Compile(pred)
	if err != nil {
		return "", nil, errors.Wrapf(err, "unable to compile predicate for %s", h.model.Name)
	}
	return sql, params, nil
}

func (h *modelHandle) orderBy(tokens []string) (string, error) {
	parts := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		desc := strings.HasPrefix(token, "-")
		path := strings.Split(strings.TrimPrefix(token, "-"), PathSeparator)
		if err := validatePath(path); err != nil {
			return "", err
		}
		if len(path) == 1 && path[0] == idColumn {
			if desc {
				parts = append(parts, idColumn+" DESC")
			} else {
				parts = append(parts, idColumn+" ASC")
			}
			continue
		}
		parts = append(parts, h.store.dialect.OrderBy(path, desc))
	}
	parts = append(parts, idColumn+" ASC")
	return strings.Join(parts, ", "), nil
}

func (h *modelHandle) selectRecords(conn session.DbConnection, q storage.Query) ([]storage.Record, error) {
	where, params, err := h.where(q.Predicate)
	if err != nil {
		return nil, err
	}
	order, err := h.orderBy(q.Sort)
	if err != nil {
		return nil, err
	}
	limit := h.store.dialect.UnboundedLimit()
	if q.Size > 0 {
		limit = "?"
		params = append(params, q.Size)
	}
	params = append(params, q.Skip)
	stmt := fmt.Sprintf(
		"SELECT %s, %s FROM %s WHERE %s ORDER BY %s LIMIT %s OFFSET ?",
		idColumn, h.store.dialect.SelectValue(), h.table(), where, order, limit,
	)
	rows, err := conn.Query(stmt, params...)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to query %s", h.model.Table)
	}
	defer rows.Close()

	var records []storage.Record
	for rows.Next() {
		var id int64
		var value string
		if err := rows.Scan(&id, &value); err != nil {
			return nil, errors.Wrapf(err, "unable to scan %s", h.model.Table)
		}
		record, err := decodeRecord(id, value)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", h.model.Table)
	}
	return records, nil
}

// selectOne returns the single record matching pred.
func (h *modelHandle) selectOne(conn session.DbConnection, pred query.IPredicate) (storage.Record, error) {
	records, err := h.selectRecords(conn, storage.NewQuery(pred).Limit(2))
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		return nil, storage.ErrNotFound
	case 1:
		return records[0], nil
	}
	return nil, storage.ErrMultipleRecords
}

func byID(id int64) query.IPredicate {
	return query.NewComparison(idColumn, operators.OperatorEq, id)
}

func (h *modelHandle) Get(ctx context.Context, pred query.IPredicate) (storage.Record, error) {
	var record storage.Record
	err := h.store.connection(ctx, func(conn session.DbConnection) (err error) {
		record, err = h.selectOne(conn, pred)
		return err
	})
	return record, err
}

func (h *modelHandle) Find(ctx context.Context, q storage.Query) ([]storage.Record, error) {
	var records []storage.Record
	err := h.store.connection(ctx, func(conn session.DbConnection) (err error) {
		records, err = h.selectRecords(conn, q)
		return err
	})
	return records, err
}

func (h *modelHandle) count(conn session.DbConnection, pred query.IPredicate, limit string) (int64, error) {
	where, params, err := h.where(pred)
	if err != nil {
		return 0, err
	}
	stmt := fmt.Sprintf(
		"SELECT COUNT(*) FROM (SELECT 1 FROM %s WHERE %s%s) AS matched",
		h.table(), where, limit,
	)
	var n int64
	if err := conn.QueryRow(stmt, params...).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "unable to count %s", h.model.Table)
	}
	return n, nil
}

func (h *modelHandle) Count(ctx context.Context, pred query.IPredicate) (int64, error) {
	var n int64
	err := h.store.connection(ctx, func(conn session.DbConnection) (err error) {
		n, err = h.count(conn, pred, "")
		return err
	})
	return n, err
}

func (h *modelHandle) Exists(ctx context.Context, pred query.IPredicate) (bool, error) {
	var n int64
	err := h.store.connection(ctx, func(conn session.DbConnection) (err error) {
		n, err = h.count(conn, pred, " LIMIT 1")
		return err
	})
	return n > 0, err
}

func (h *modelHandle) insert(conn session.DbConnection, fields storage.Record) (storage.Record, error) {
	value, err := encodeRecord(fields)
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		h.table(), valueColumn, h.store.dialect.InsertValue(), idColumn,
	)
	result, err := conn.Exec(stmt, value)
	if err != nil {
		return nil, h.store.mapError(errors.Wrapf(err, "unable to insert into %s", h.model.Table))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return decodeRecord(id, value)
}

func (h *modelHandle) Create(ctx context.Context, fields storage.Record) (storage.Record, error) {
	var record storage.Record
	err := h.store.connection(ctx, func(conn session.DbConnection) (err error) {
		record, err = h.insert(conn, fields)
		return err
	})
	return record, err
}

func (h *modelHandle) BulkCreate(ctx context.Context, records []storage.Record) error {
	if len(records) == 0 {
		return nil
	}
	return h.store.atomic(ctx, func(conn session.DbConnection) error {
		for _, fields := range records {
			if _, err := h.insert(conn, fields); err != nil {
				return err
			}
		}
		return nil
	})
}

// set merges fields into the rows matching where and reports how many changed.
func (h *modelHandle) set(conn session.DbConnection, fields storage.Record, where string, whereParams []any) (int64, error) {
	payload := make(map[string]any, len(fields))
	for k, v := range fields {
		if k != storage.IDField {
			payload[k] = v
		}
	}
	if len(payload) == 0 {
		var n int64
		stmt := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", h.table(), where)
		if err := conn.QueryRow(stmt, whereParams...).Scan(&n); err != nil {
			return 0, errors.Wrapf(err, "unable to count %s", h.model.Table)
		}
		return n, nil
	}
	merge, params, err := h.store.dialect.Merge(payload)
	if err != nil {
		return 0, err
	}
	stmt := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s", h.table(), valueColumn, merge, where)
	result, err := conn.Exec(stmt, append(params, whereParams...)...)
	if err != nil {
		return 0, h.store.mapError(errors.Wrapf(err, "unable to update %s", h.model.Table))
	}
	return result.RowsAffected()
}

func (h *modelHandle) Update(ctx context.Context, pred query.IPredicate, fields storage.Record) (storage.Record, error) {
	var record storage.Record
	err := h.store.atomic(ctx, func(conn session.DbConnection) error {
		current, err := h.selectOne(conn, pred)
		if err != nil {
			return err
		}
		id := current[storage.IDField].(int64)
		if _, err := h.set(conn, fields, idColumn+" = ?", []any{id}); err != nil {
			return err
		}
		record, err = h.selectOne(conn, byID(id))
		return err
	})
	return record, err
}

func (h *modelHandle) BulkUpdate(ctx context.Context, pred query.IPredicate, fields storage.Record) (int64, error) {
	var n int64
	err := h.store.atomic(ctx, func(conn session.DbConnection) error {
		where, params, err := h.where(pred)
		if err != nil {
			return err
		}
		n, err = h.set(conn, fields, where, params)
		return err
	})
	return n, err
}

func (h *modelHandle) remove(conn session.DbConnection, where string, params []any) (int64, error) {
	result, err := conn.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s", h.table(), where), params...)
	if err != nil {
		return 0, h.store.mapError(errors.Wrapf(err, "unable to delete from %s", h.model.Table))
	}
	return result.RowsAffected()
}

func (h *modelHandle) Delete(ctx context.Context, pred query.IPredicate) error {
	return h.store.atomic(ctx, func(conn session.DbConnection) error {
		current, err := h.selectOne(conn, pred)
		if err != nil {
			return err
		}
		_, err = h.remove(conn, idColumn+" = ?", []any{current[storage.IDField]})
		return err
	})
}

func (h *modelHandle) BulkDelete(ctx context.Context, pred query.IPredicate) (int64, error) {
	var n int64
	err := h.store.atomic(ctx, func(conn session.DbConnection) error {
		where, params, err := h.where(pred)
		if err != nil {
			return err
		}
		n, err = h.remove(conn, where, params)
		return err
	})
	return n, err
}
