package memstore

import (
	"context"
	"errors"
	"sync"

	pkgerrors "github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query/operators"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/schema"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/storage"
)

// PathSeparator joins nested field names in sort tokens.
const PathSeparator = "."

var ErrClosed = errors.New("memstore: store is closed")

// Store keeps records in process memory. Every model gets its own table and
// id sequence. Writes hold the lock for the whole operation, so bulk writes are atomic.
type Store struct {
	mu        sync.RWMutex
	registry  *schema.Registry
	database  string
	operators *operators.OperatorRegistry
	tables    map[string]*table
	closed    bool
}

type table struct {
	model schema.Model
	seq   int64
	rows  map[int64]storage.Record
}

func New(registry *schema.Registry, database string) *Store {
	return &Store{
		registry:  registry,
		database:  database,
		operators: operators.NewDefaultRegistry(),
		tables:    make(map[string]*table),
	}
}

func (s *Store) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, m := range s.registry.Models() {
		s.table(m)
	}
	return nil
}

// table must be called with the write lock held.
func (s *Store) table(m schema.Model) *table {
	t, ok := s.tables[m.Name]
	if !ok {
		t = &table{model: m, rows: make(map[int64]storage.Record)}
		s.tables[m.Name] = t
	}
	return t
}

func (s *Store) ResolveModel(_ context.Context, database, name string) (storage.ModelHandle, error) {
	if database != s.database {
		return nil, pkgerrors.Wrapf(storage.ErrModelNotFound, "unknown database %s", database)
	}
	m, ok := s.registry.Lookup(name)
	if !ok {
		return nil, pkgerrors.Wrapf(storage.ErrModelNotFound, "%s", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	s.table(m)
	return &modelHandle{store: s, name: m.Name}, nil
}

func (s *Store) PathSeparator() string {
	return PathSeparator
}

func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.tables = nil
	return nil
}

func (s *Store) read(name string, fn func(t *table) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return fn(s.tables[name])
}

func (s *Store) write(name string, fn func(t *table) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return fn(s.tables[name])
}
