package storage

import (
	"context"
	"errors"

	"github.com/hashicorp/go-multierror"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query"
)

// Record is a stored row or document. Every stored record carries IDField.
type Record = map[string]any

const IDField = "id"

var (
	ErrNotFound        = errors.New("record not found")
	ErrMultipleRecords = errors.New("multiple records found")
	ErrConstraint      = errors.New("constraint violation")
	ErrModelNotFound   = errors.New("model not found")
)

// Store is one connection target (primary or replica) of a storage engine.
type Store interface {
	ResolveModel(ctx context.Context, database, name string) (ModelHandle, error)
	// PathSeparator joins nested field names in sort tokens, e.g. "__" for SQL engines.
	PathSeparator() string
	Close(ctx context.Context) error
}

// Initializer is implemented by stores that prepare schema objects on startup.
type Initializer interface {
	Init(ctx context.Context) error
}

type ModelHandle interface {
	Get(ctx context.Context, pred query.IPredicate) (Record, error)
	Find(ctx context.Context, q Query) ([]Record, error)
	Count(ctx context.Context, pred query.IPredicate) (int64, error)
	Exists(ctx context.Context, pred query.IPredicate) (bool, error)
	Create(ctx context.Context, fields Record) (Record, error)
	// Update merges fields into the single record matching pred.
	Update(ctx context.Context, pred query.IPredicate, fields Record) (Record, error)
	Delete(ctx context.Context, pred query.IPredicate) error
	BulkCreate(ctx context.Context, records []Record) error
	BulkUpdate(ctx context.Context, pred query.IPredicate, fields Record) (int64, error)
	BulkDelete(ctx context.Context, pred query.IPredicate) (int64, error)
}

// Query is a read request: Find(NewQuery(pred).OrderBy("-age").Offset(10).Limit(10)).
type Query struct {
	Predicate query.IPredicate
	// Sort holds normalized tokens such as "name" and "-employer__name".
	Sort []string
	Skip int64
	// Size of 0 means no limit.
	Size int64
}

func NewQuery(pred query.IPredicate) Query {
	if pred == nil {
		pred = query.True()
	}
	return Query{Predicate: pred}
}

func (q Query) OrderBy(tokens ...string) Query {
	q.Sort = append([]string(nil), tokens...)
	return q
}

func (q Query) Offset(n int64) Query {
	q.Skip = n
	return q
}

func (q Query) Limit(n int64) Query {
	q.Size = n
	return q
}

type Connector interface {
	Connect(ctx context.Context) (Handles, error)
}

// Handles routes reads to Replica and writes to Primary. Both may be the same Store.
type Handles struct {
	Primary Store
	Replica Store
}

func (h Handles) Close(ctx context.Context) error {
	var result error
	if h.Primary != nil {
		if err := h.Primary.Close(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if h.Replica != nil && h.Replica != h.Primary {
		if err := h.Replica.Close(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

func (h Handles) Init(ctx context.Context) error {
	if init, ok := h.Primary.(Initializer); ok {
		return init.Init(ctx)
	}
	return nil
}
