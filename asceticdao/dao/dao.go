package dao

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/config"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/infrastructure/connect"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/logger"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/metrics"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query/operators"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/schema"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/storage"
)

// Record is a stored record keyed by field name; "id" holds the int64 primary key.
type Record = storage.Record

type IDao interface {
	Init(ctx context.Context) error
	Close(ctx context.Context) error

	GetByID(ctx context.Context, model string, id int64) (Record, error)
	GetByField(ctx context.Context, model, field string, value any) (Record, error)
	GetMany(ctx context.Context, model string, filters map[string]any, sort any, page *Page) ([]Record, error)

	Create(ctx context.Context, model string, record Record) (Record, error)
	Update(ctx context.Context, model string, id int64, fields Record) (Record, error)
	UpdateOrCreate(ctx context.Context, model string, lookup map[string]any, fields Record) (Record, error)
	Delete(ctx context.Context, model string, id int64) error

	BulkCreate(ctx context.Context, model string, records []Record) error
	BulkUpdate(ctx context.Context, model string, filters map[string]any, fields Record) (int64, error)
	BulkDelete(ctx context.Context, model string, filters map[string]any) (int64, error)

	Count(ctx context.Context, model string, filters map[string]any) (int64, error)
	Exists(ctx context.Context, model string, filters map[string]any) (bool, error)
}

// Page is a 1-indexed window: page 2 of size 10 holds records 11-20.
type Page struct {
	Number int64
	Size   int64
}

type state int

const (
	stateUninitialized state = iota
	stateReady
	stateClosing
	stateClosed
)

type Option func(*Dao)

func WithConnector(connector storage.Connector) Option {
	return func(d *Dao) {
		d.connector = connector
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(d *Dao) {
		d.logger = l
	}
}

func WithMetrics(c *metrics.Collector) Option {
	return func(d *Dao) {
		d.metrics = c
	}
}

func WithRegistry(r *schema.Registry) Option {
	return func(d *Dao) {
		d.registry = r
	}
}

var _ IDao = (*Dao)(nil)

type Dao struct {
	database  string
	connector storage.Connector
	registry  *schema.Registry
	logger    *zap.Logger
	metrics   *metrics.Collector

	mu       sync.Mutex
	state    state
	handles  storage.Handles
	inflight sync.WaitGroup
}

// New builds an uninitialized DAO. Without WithConnector the engine is chosen
// from cfg, and without WithRegistry models are loaded from cfg.ModelLocations.
func New(cfg config.Database, opts ...Option) (*Dao, error) {
	d := &Dao{database: cfg.DatabaseName}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	if d.connector != nil {
		return d, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if d.registry == nil {
		registry, err := schema.LoadLocations(cfg.ModelLocations)
		if err != nil {
			return nil, err
		}
		d.registry = registry
	}
	d.connector = connect.FromConfig(cfg, d.registry)
	return d, nil
}

func (d *Dao) Init(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case stateReady:
		return connectionError(OpInit, "dao is already initialized")
	case stateClosing, stateClosed:
		return connectionError(OpInit, ErrClosed)
	}
	handles, err := d.connector.Connect(ctx)
	if err != nil {
		return connectionError(OpInit, err)
	}
	if err := handles.Init(ctx); err != nil {
		if closeErr := handles.Close(ctx); closeErr != nil {
			logger.FromContext(ctx, d.logger).Warn("failed to release connection", zap.Error(closeErr))
		}
		return connectionError(OpInit, err)
	}
	d.handles = handles
	d.state = stateReady
	logger.FromContext(ctx, d.logger).Debug("dao initialized", zap.String("database", d.database))
	return nil
}

// Close rejects new calls, waits for the calls in flight, then closes the handles.
func (d *Dao) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.state != stateReady {
		d.mu.Unlock()
		return connectionError(OpClose, "dao is not ready")
	}
	d.state = stateClosing
	d.mu.Unlock()

	d.inflight.Wait()
	err := d.handles.Close(ctx)

	d.mu.Lock()
	d.state = stateClosed
	d.handles = storage.Handles{}
	d.mu.Unlock()

	if err != nil {
		return connectionError(OpClose, err)
	}
	logger.FromContext(ctx, d.logger).Debug("dao closed", zap.String("database", d.database))
	return nil
}

func (d *Dao) acquire(op, model string) (storage.Handles, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state {
	case stateUninitialized:
		return storage.Handles{}, stateError(op, model, ErrNotInitialized)
	case stateClosing, stateClosed:
		return storage.Handles{}, stateError(op, model, ErrClosed)
	}
	d.inflight.Add(1)
	return d.handles, nil
}

// run brackets every CRUD call: lifecycle check, logging, metrics and error mapping.
func (d *Dao) run(ctx context.Context, op, model string, fn func(storage.Handles) error) error {
	start := time.Now()
	log := logger.FromContext(ctx, d.logger).With(
		zap.String("op_id", uuid.NewString()),
		zap.String("operation", op),
		zap.String("model", model),
	)

	handles, err := d.acquire(op, model)
	if err == nil {
		err = d.call(op, model, handles, fn)
	}

	elapsed := time.Since(start)
	status := statusOf(err)
	d.metrics.Observe(op, model, status, elapsed)
	if status == metrics.StatusError {
		log.Warn("dao operation failed", zap.Duration("duration", elapsed), zap.Error(err))
	} else {
		log.Debug("dao operation", zap.Duration("duration", elapsed), zap.String("status", status))
	}
	return err
}

// call releases the in-flight slot even when fn panics, so Close never waits forever.
func (d *Dao) call(op, model string, handles storage.Handles, fn func(storage.Handles) error) error {
	defer d.inflight.Done()
	return mapError(op, model, fn(handles))
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return metrics.StatusOK
	case errors.Is(err, ErrInvalidQuery):
		return metrics.StatusInvalid
	case errors.Is(err, ErrRecordNotFound):
		return metrics.StatusNotFound
	}
	return metrics.StatusError
}

func (d *Dao) resolve(ctx context.Context, store storage.Store, model string) (storage.ModelHandle, error) {
	if !schema.IsValidModelName(model) {
		return nil, query.Invalidf("invalid model name: %s", model)
	}
	handle, err := store.ResolveModel(ctx, d.database, model)
	if err != nil {
		return nil, &query.InvalidQueryError{
			Message: "error getting model " + model + ": " + err.Error(),
			Err:     err,
		}
	}
	return handle, nil
}

func (d *Dao) GetByID(ctx context.Context, model string, id int64) (Record, error) {
	var result Record
	err := d.run(ctx, OpGetByID, model, func(h storage.Handles) error {
		handle, err := d.resolve(ctx, h.Replica, model)
		if err != nil {
			return err
		}
		result, err = handle.Get(ctx, byID(id))
		return err
	})
	return result, err
}

func (d *Dao) GetByField(ctx context.Context, model, field string, value any) (Record, error) {
	var result Record
	err := d.run(ctx, OpGetByField, model, func(h storage.Handles) error {
		handle, err := d.resolve(ctx, h.Replica, model)
		if err != nil {
			return err
		}
		if !query.IsValidField(field) {
			return query.Invalidf("invalid field: %s", field)
		}
		if !query.IsScalar(value) {
			return query.Invalidf("invalid value %v for field %s", value, field)
		}
		result, err = handle.Get(ctx, query.And(query.NewComparison(field, operators.OperatorEq, value)))
		return err
	})
	return result, err
}

func (d *Dao) GetMany(ctx context.Context, model string, filters map[string]any, sort any, page *Page) ([]Record, error) {
	var result []Record
	err := d.run(ctx, OpGetMany, model, func(h storage.Handles) error {
		handle, err := d.resolve(ctx, h.Replica, model)
		if err != nil {
			return err
		}
		pred, err := query.Compile(filters)
		if err != nil {
			return err
		}
		q := storage.NewQuery(pred)
		if !isEmptySort(sort) {
			tokens, err := query.NormalizeSort(sort, h.Replica.PathSeparator())
			if err != nil {
				return err
			}
			q = q.OrderBy(tokens...)
		}
		if page != nil {
			if page.Number < 1 || page.Size < 1 {
				return query.Invalidf("invalid page %d of size %d, both should be positive", page.Number, page.Size)
			}
			if page.Number-1 > math.MaxInt64/page.Size {
				return query.Invalidf("invalid page %d of size %d, offset is out of range", page.Number, page.Size)
			}
			q = q.Offset((page.Number - 1) * page.Size).Limit(page.Size)
		}
		result, err = handle.Find(ctx, q)
		return err
	})
	return result, err
}

func (d *Dao) Create(ctx context.Context, model string, record Record) (Record, error) {
	var result Record
	err := d.run(ctx, OpCreate, model, func(h storage.Handles) error {
		handle, err := d.resolve(ctx, h.Primary, model)
		if err != nil {
			return err
		}
		fields, err := createPayload(record)
		if err != nil {
			return err
		}
		result, err = handle.Create(ctx, fields)
		return err
	})
	return result, err
}

func (d *Dao) Update(ctx context.Context, model string, id int64, fields Record) (Record, error) {
	var result Record
	err := d.run(ctx, OpUpdate, model, func(h storage.Handles) error {
		handle, err := d.resolve(ctx, h.Primary, model)
		if err != nil {
			return err
		}
		if err := validateUpdate(fields); err != nil {
			return err
		}
		result, err = handle.Update(ctx, byID(id), fields)
		return err
	})
	return result, err
}

// UpdateOrCreate looks the record up by equality on lookup. A miss creates
// lookup merged with fields, a hit updates the found record with fields.
func (d *Dao) UpdateOrCreate(ctx context.Context, model string, lookup map[string]any, fields Record) (Record, error) {
	var result Record
	err := d.run(ctx, OpUpdateOrCreate, model, func(h storage.Handles) error {
		handle, err := d.resolve(ctx, h.Primary, model)
		if err != nil {
			return err
		}
		pred, err := lookupPredicate(lookup)
		if err != nil {
			return err
		}
		if err := validateUpdate(fields); err != nil {
			return err
		}
		found, err := handle.Get(ctx, pred)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			merged := make(Record, len(lookup)+len(fields))
			for k, v := range lookup {
				merged[k] = v
			}
			for k, v := range fields {
				merged[k] = v
			}
			payload, err := createPayload(merged)
			if err != nil {
				return err
			}
			result, err = handle.Create(ctx, payload)
			return err
		case err != nil:
			return err
		}
		id, _ := found[storage.IDField].(int64)
		result, err = handle.Update(ctx, byID(id), fields)
		return err
	})
	return result, err
}

func (d *Dao) Delete(ctx context.Context, model string, id int64) error {
	return d.run(ctx, OpDelete, model, func(h storage.Handles) error {
		handle, err := d.resolve(ctx, h.Primary, model)
		if err != nil {
			return err
		}
		return handle.Delete(ctx, byID(id))
	})
}

func (d *Dao) BulkCreate(ctx context.Context, model string, records []Record) error {
	return d.run(ctx, OpBulkCreate, model, func(h storage.Handles) error {
		handle, err := d.resolve(ctx, h.Primary, model)
		if err != nil {
			return err
		}
		payloads := make([]Record, 0, len(records))
		for _, record := range records {
			payload, err := createPayload(record)
			if err != nil {
				return err
			}
			payloads = append(payloads, payload)
		}
		if len(payloads) == 0 {
			return nil
		}
		return handle.BulkCreate(ctx, payloads)
	})
}

func (d *Dao) BulkUpdate(ctx context.Context, model string, filters map[string]any, fields Record) (int64, error) {
	var affected int64
	err := d.run(ctx, OpBulkUpdate, model, func(h storage.Handles) error {
		handle, err := d.resolve(ctx, h.Primary, model)
		if err != nil {
			return err
		}
		pred, err := query.Compile(filters)
		if err != nil {
			return err
		}
		if err := validateUpdate(fields); err != nil {
			return err
		}
		affected, err = handle.BulkUpdate(ctx, pred, fields)
		return err
	})
	return affected, err
}

func (d *Dao) BulkDelete(ctx context.Context, model string, filters map[string]any) (int64, error) {
	var affected int64
	err := d.run(ctx, OpBulkDelete, model, func(h storage.Handles) error {
		handle, err := d.resolve(ctx, h.Primary, model)
		if err != nil {
			return err
		}
		pred, err := query.Compile(filters)
		if err != nil {
			return err
		}
		affected, err = handle.BulkDelete(ctx, pred)
		return err
	})
	return affected, err
}

func (d *Dao) Count(ctx context.Context, model string, filters map[string]any) (int64, error) {
	var count int64
	err := d.run(ctx, OpCount, model, func(h storage.Handles) error {
		handle, err := d.resolve(ctx, h.Replica, model)
		if err != nil {
			return err
		}
		pred, err := query.Compile(filters)
		if err != nil {
			return err
		}
		count, err = handle.Count(ctx, pred)
		return err
	})
	return count, err
}

func (d *Dao) Exists(ctx context.Context, model string, filters map[string]any) (bool, error) {
	var exists bool
	err := d.run(ctx, OpExists, model, func(h storage.Handles) error {
		handle, err := d.resolve(ctx, h.Replica, model)
		if err != nil {
			return err
		}
		pred, err := query.Compile(filters)
		if err != nil {
			return err
		}
		exists, err = handle.Exists(ctx, pred)
		return err
	})
	return exists, err
}
