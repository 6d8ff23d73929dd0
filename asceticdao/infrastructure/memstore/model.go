package memstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query/operators"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/storage"
)

type modelHandle struct {
	store *Store
	name  string
}

// match returns the rows satisfying pred ordered by id.
func (h *modelHandle) match(t *table, pred query.IPredicate) ([]storage.Record, error) {
	if pred == nil {
		pred = query.True()
	}
	var result []storage.Record
	for _, r := range t.rows {
		ok, err := query.Matches(pred, r, h.store.operators)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to evaluate predicate for %s", h.name)
		}
		if ok {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return recordID(result[i]) < recordID(result[j]) })
	return result, nil
}

func (h *modelHandle) one(t *table, pred query.IPredicate) (storage.Record, error) {
	rows, err := h.match(t, pred)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, storage.ErrNotFound
	case 1:
		return rows[0], nil
	}
	return nil, storage.ErrMultipleRecords
}

func (h *modelHandle) Get(_ context.Context, pred query.IPredicate) (storage.Record, error) {
	var record storage.Record
	err := h.store.read(h.name, func(t *table) error {
		r, err := h.one(t, pred)
		if err != nil {
			return err
		}
		record = copyRecord(r)
		return nil
	})
	return record, err
}

func (h *modelHandle) Find(_ context.Context, q storage.Query) ([]storage.Record, error) {
	var records []storage.Record
	err := h.store.read(h.name, func(t *table) error {
		rows, err := h.match(t, q.Predicate)
		if err != nil {
			return err
		}
		if err := h.order(rows, q.Sort); err != nil {
			return err
		}
		end := int64(len(rows))
		start := min(max(q.Skip, 0), end)
		if q.Size > 0 && q.Size < end-start {
			end = start + q.Size
		}
		for _, r := range rows[start:end] {
			records = append(records, copyRecord(r))
		}
		return nil
	})
	return records, err
}

type sortKey struct {
	path []string
	desc bool
}

// order sorts rows stably by tokens; missing and null values sort last
// ascending and first descending.
func (h *modelHandle) order(rows []storage.Record, tokens []string) error {
	keys := make([]sortKey, len(tokens))
	for i, token := range tokens {
		desc := strings.HasPrefix(token, "-")
		field := strings.TrimPrefix(token, "-")
		if !query.IsValidField(field) {
			return fmt.Errorf("invalid sort field %s", token)
		}
		keys[i] = sortKey{path: strings.Split(field, PathSeparator), desc: desc}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, key := range keys {
			c := h.compare(pathValue(rows[i], key.path), pathValue(rows[j], key.path))
			if c == 0 {
				continue
			}
			if key.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return nil
}

// compare orders nil after every value and values of different kinds by kind.
func (h *modelHandle) compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return 1
		}
		return -1
	}
	if ka, kb := kindRank(a), kindRank(b); ka != kb {
		return ka - kb
	}
	if lt, _ := h.store.operators.ExecBinary(a, operators.OperatorLt, b); lt == true {
		return -1
	}
	if gt, _ := h.store.operators.ExecBinary(a, operators.OperatorGt, b); gt == true {
		return 1
	}
	return 0
}

func kindRank(v any) int {
	switch v.(type) {
	case int64, float64:
		return 0
	case string:
		return 1
	case bool:
		return 2
	}
	return 3
}

func (h *modelHandle) Count(_ context.Context, pred query.IPredicate) (int64, error) {
	var n int64
	err := h.store.read(h.name, func(t *table) error {
		rows, err := h.match(t, pred)
		n = int64(len(rows))
		return err
	})
	return n, err
}

func (h *modelHandle) Exists(ctx context.Context, pred query.IPredicate) (bool, error) {
	n, err := h.Count(ctx, pred)
	return n > 0, err
}

func (h *modelHandle) Create(_ context.Context, fields storage.Record) (storage.Record, error) {
	var record storage.Record
	err := h.store.write(h.name, func(t *table) error {
		r, err := h.insert(t, fields)
		if err != nil {
			return err
		}
		record = copyRecord(r)
		return nil
	})
	return record, err
}

func (h *modelHandle) BulkCreate(_ context.Context, records []storage.Record) error {
	return h.store.write(h.name, func(t *table) error {
		seq := t.seq
		var created []int64
		for _, fields := range records {
			r, err := h.insert(t, fields)
			if err != nil {
				for _, id := range created {
					delete(t.rows, id)
				}
				t.seq = seq
				return err
			}
			created = append(created, recordID(r))
		}
		return nil
	})
}

// insert stores fields under the next id.
func (h *modelHandle) insert(t *table, fields storage.Record) (storage.Record, error) {
	r, err := storage.Canonical(withoutID(fields))
	if err != nil {
		return nil, err
	}
	if err := h.checkUnique(t, r, 0); err != nil {
		return nil, err
	}
	t.seq++
	r[storage.IDField] = t.seq
	t.rows[t.seq] = r
	return r, nil
}

// checkUnique rejects r when another row, other than skipID, holds one of its unique values.
func (h *modelHandle) checkUnique(t *table, r storage.Record, skipID int64) error {
	for _, field := range t.model.Unique {
		path := strings.Split(field, ".")
		value := pathValue(r, path)
		if value == nil {
			continue
		}
		for id, other := range t.rows {
			if id != skipID && reflect.DeepEqual(pathValue(other, path), value) {
				return errors.Wrapf(storage.ErrConstraint, "duplicate value %v for %s.%s", value, t.model.Name, field)
			}
		}
	}
	return nil
}

func (h *modelHandle) Update(_ context.Context, pred query.IPredicate, fields storage.Record) (storage.Record, error) {
	var record storage.Record
	err := h.store.write(h.name, func(t *table) error {
		current, err := h.one(t, pred)
		if err != nil {
			return err
		}
		updated, err := h.merge(current, fields)
		if err != nil {
			return err
		}
		if err := h.checkUnique(t, updated, recordID(current)); err != nil {
			return err
		}
		t.rows[recordID(current)] = updated
		record = copyRecord(updated)
		return nil
	})
	return record, err
}

func (h *modelHandle) BulkUpdate(_ context.Context, pred query.IPredicate, fields storage.Record) (int64, error) {
	var n int64
	err := h.store.write(h.name, func(t *table) error {
		rows, err := h.match(t, pred)
		if err != nil {
			return err
		}
		staged := make(map[int64]storage.Record, len(rows))
		for _, current := range rows {
			updated, err := h.merge(current, fields)
			if err != nil {
				return err
			}
			staged[recordID(current)] = updated
		}
		previous := make(map[int64]storage.Record, len(staged))
		for id, updated := range staged {
			previous[id] = t.rows[id]
			t.rows[id] = updated
		}
		for id, updated := range staged {
			if err := h.checkUnique(t, updated, id); err != nil {
				for id, r := range previous {
					t.rows[id] = r
				}
				return err
			}
		}
		n = int64(len(staged))
		return nil
	})
	return n, err
}

// merge replaces the top-level keys of current with fields.
func (h *modelHandle) merge(current, fields storage.Record) (storage.Record, error) {
	patch, err := storage.Canonical(withoutID(fields))
	if err != nil {
		return nil, err
	}
	updated := copyRecord(current)
	for k, v := range patch {
		updated[k] = v
	}
	return updated, nil
}

func (h *modelHandle) Delete(_ context.Context, pred query.IPredicate) error {
	return h.store.write(h.name, func(t *table) error {
		current, err := h.one(t, pred)
		if err != nil {
			return err
		}
		delete(t.rows, recordID(current))
		return nil
	})
}

func (h *modelHandle) BulkDelete(_ context.Context, pred query.IPredicate) (int64, error) {
	var n int64
	err := h.store.write(h.name, func(t *table) error {
		rows, err := h.match(t, pred)
		if err != nil {
			return err
		}
		for _, r := range rows {
			delete(t.rows, recordID(r))
		}
		n = int64(len(rows))
		return nil
	})
	return n, err
}

func recordID(r storage.Record) int64 {
	id, _ := r[storage.IDField].(int64)
	return id
}

func withoutID(fields storage.Record) storage.Record {
	out := make(storage.Record, len(fields))
	for k, v := range fields {
		if k != storage.IDField {
			out[k] = v
		}
	}
	return out
}

func pathValue(r storage.Record, path []string) any {
	var current any = r
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[key]
	}
	return current
}

// copyRecord deep-copies the maps and slices of a canonical record.
func copyRecord(r storage.Record) storage.Record {
	return copyValue(r).(map[string]any)
}

func copyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = copyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = copyValue(item)
		}
		return out
	}
	return value
}
