package mongostore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/schema"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/storage"
)

const (
	// PathSeparator joins nested field names in sort tokens.
	PathSeparator = "."
	// countersCollection holds one id sequence per model collection.
	countersCollection = "__counters"
)

// Store keeps every model in its own collection. Documents use an int64 _id
// drawn from a per-collection counter.
type Store struct {
	client   *mongo.Client
	db       *mongo.Database
	registry *schema.Registry
	database string
	owner    bool
}

// Connect dials uri and pings it. readPreference is empty for the primary.
func Connect(ctx context.Context, uri, database string, registry *schema.Registry, timeout time.Duration, readPreference string) (*Store, error) {
	opts := options.Client().ApplyURI(uri)
	if timeout > 0 {
		opts.SetConnectTimeout(timeout).SetServerSelectionTimeout(timeout)
	}
	if readPreference != "" {
		mode, err := readpref.ModeFromString(readPreference)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid read preference %s", readPreference)
		}
		pref, err := readpref.New(mode)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid read preference %s", readPreference)
		}
		opts.SetReadPreference(pref)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "unable to reach mongodb")
	}
	store := New(client, database, registry)
	store.owner = true
	return store, nil
}

// New wraps a connected client. Close leaves the client connected.
func New(client *mongo.Client, database string, registry *schema.Registry) *Store {
	return &Store{
		client:   client,
		db:       client.Database(database),
		registry: registry,
		database: database,
	}
}

// Init creates the unique indexes of every registered model.
// Only documents holding the field take part in its index.
func (s *Store) Init(ctx context.Context) error {
	for _, m := range s.registry.Models() {
		for _, f := range m.Unique {
			index := mongo.IndexModel{
				Keys: bson.D{{Key: f, Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetName(m.Table + "_" + f + "_key").
					SetPartialFilterExpression(field(f, bson.D{{Key: "$exists", Value: true}})),
			}
			if _, err := s.db.Collection(m.Table).Indexes().CreateOne(ctx, index); err != nil {
				return errors.Wrapf(err, "unable to create unique index on %s.%s", m.Table, f)
			}
		}
	}
	return nil
}

func (s *Store) ResolveModel(_ context.Context, database, name string) (storage.ModelHandle, error) {
	if database != s.database {
		return nil, errors.Wrapf(storage.ErrModelNotFound, "unknown database %s", database)
	}
	m, ok := s.registry.Lookup(name)
	if !ok {
		return nil, errors.Wrapf(storage.ErrModelNotFound, "%s", name)
	}
	return &modelHandle{store: s, model: m, coll: s.db.Collection(m.Table)}, nil
}

func (s *Store) PathSeparator() string {
	return PathSeparator
}

func (s *Store) Close(ctx context.Context) error {
	if !s.owner {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// nextIDs reserves n consecutive ids for collection and returns the first.
func (s *Store) nextIDs(ctx context.Context, collection string, n int64) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.db.Collection(countersCollection).FindOneAndUpdate(
		ctx,
		bson.D{{Key: idKey, Value: collection}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: n}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to allocate ids for %s", collection)
	}
	return counter.Seq - n + 1, nil
}

func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return errors.Wrap(storage.ErrConstraint, err.Error())
	}
	return errors.Wrap(err, msg)
}
