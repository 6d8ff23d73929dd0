package mongostore

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query/operators"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/schema"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/storage"
)

type modelHandle struct {
	store *Store
	model schema.Model
	coll  *mongo.Collection
}

func (h *modelHandle) filter(pred query.IPredicate) (bson.D, error) {
	f, err := NewPredicateCompiler().Compile(pred)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to compile predicate for %s", h.model.Name)
	}
	return f, nil
}

// pipeline sorts like SQL: missing and null values last ascending, first descending.
func (h *modelHandle) pipeline(f bson.D, q storage.Query) (mongo.Pipeline, error) {
	pipeline := mongo.Pipeline{{{Key: "$match", Value: f}}}
	sortBy := bson.D{}
	nullFlags := bson.D{}
	for i, token := range q.Sort {
		desc := strings.HasPrefix(token, "-")
		path := strings.TrimPrefix(token, "-")
		if !query.IsValidField(path) {
			return nil, fmt.Errorf("invalid sort field %s", token)
		}
		key := fieldKey(path)
		direction := 1
		if desc {
			direction = -1
		}
		flag := fmt.Sprintf("__null%d", i)
		nullFlags = append(nullFlags, bson.E{Key: flag, Value: bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$in", Value: bson.A{bson.D{{Key: "$type", Value: "$" + key}}, bson.A{"missing", "null"}}}},
			1, 0,
		}}}})
		sortBy = append(sortBy, bson.E{Key: flag, Value: direction}, bson.E{Key: key, Value: direction})
	}
	if !hasKey(sortBy, idKey) {
		sortBy = append(sortBy, bson.E{Key: idKey, Value: 1})
	}
	if len(nullFlags) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$addFields", Value: nullFlags}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$sort", Value: sortBy}})
	if q.Skip > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: q.Skip}})
	}
	if q.Size > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: q.Size}})
	}
	if len(nullFlags) > 0 {
		unset := bson.A{}
		for _, e := range nullFlags {
			unset = append(unset, e.Key)
		}
		pipeline = append(pipeline, bson.D{{Key: "$unset", Value: unset}})
	}
	return pipeline, nil
}

func hasKey(d bson.D, key string) bool {
	for _, e := range d {
		if e.Key == key {
			return true
		}
	}
	return false
}

func (h *modelHandle) find(ctx context.Context, q storage.Query) ([]storage.Record, error) {
	f, err := h.filter(q.Predicate)
	if err != nil {
		return nil, err
	}
	pipeline, err := h.pipeline(f, q)
	if err != nil {
		return nil, err
	}
	cursor, err := h.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to query %s", h.model.Table)
	}
	defer cursor.Close(ctx)

	var records []storage.Record
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.Wrapf(err, "unable to decode %s", h.model.Table)
		}
		records = append(records, decodeDocument(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", h.model.Table)
	}
	return records, nil
}

func (h *modelHandle) one(ctx context.Context, pred query.IPredicate) (storage.Record, error) {
	records, err := h.find(ctx, storage.NewQuery(pred).Limit(2))
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

func (h *modelHandle) Get(ctx context.Context, pred query.IPredicate) (storage.Record, error) {
	return h.one(ctx, pred)
}

func (h *modelHandle) Find(ctx context.Context, q storage.Query) ([]storage.Record, error) {
	return h.find(ctx, q)
}

func (h *modelHandle) count(ctx context.Context, pred query.IPredicate, opts ...*options.CountOptions) (int64, error) {
	f, err := h.filter(pred)
	if err != nil {
		return 0, err
	}
	n, err := h.coll.CountDocuments(ctx, f, opts...)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to count %s", h.model.Table)
	}
	return n, nil
}

func (h *modelHandle) Count(ctx context.Context, pred query.IPredicate) (int64, error) {
	return h.count(ctx, pred)
}

func (h *modelHandle) Exists(ctx context.Context, pred query.IPredicate) (bool, error) {
	n, err := h.count(ctx, pred, options.Count().SetLimit(1))
	return n > 0, err
}

func (h *modelHandle) Create(ctx context.Context, fields storage.Record) (storage.Record, error) {
	id, err := h.store.nextIDs(ctx, h.model.Table, 1)
	if err != nil {
		return nil, err
	}
	doc, record, err := encodeDocument(id, fields)
	if err != nil {
		return nil, err
	}
	if _, err := h.coll.InsertOne(ctx, doc); err != nil {
		return nil, mapError(err, fmt.Sprintf("unable to insert into %s", h.model.Table))
	}
	return record, nil
}

// BulkCreate inserts records in order. When an insert fails the documents
// already written by this call are removed.
func (h *modelHandle) BulkCreate(ctx context.Context, records []storage.Record) error {
	if len(records) == 0 {
		return nil
	}
	first, err := h.store.nextIDs(ctx, h.model.Table, int64(len(records)))
	if err != nil {
		return err
	}
	docs := make([]any, len(records))
	ids := make([]any, len(records))
	for i, fields := range records {
		doc, _, err := encodeDocument(first+int64(i), fields)
		if err != nil {
			return err
		}
		docs[i] = doc
		ids[i] = first + int64(i)
	}
	_, err = h.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		if _, cleanupErr := h.coll.DeleteMany(ctx, field(idKey, bson.D{{Key: "$in", Value: ids}})); cleanupErr != nil {
			return errors.Wrapf(cleanupErr, "unable to undo partial insert into %s after: %v", h.model.Table, err)
		}
		return mapError(err, fmt.Sprintf("unable to insert into %s", h.model.Table))
	}
	return nil
}

func setDocument(fields storage.Record) (bson.D, error) {
	patch, err := storage.Canonical(fields)
	if err != nil {
		return nil, err
	}
	delete(patch, storage.IDField)
	delete(patch, idKey)
	return bson.D{{Key: "$set", Value: bson.M(patch)}}, nil
}

func (h *modelHandle) Update(ctx context.Context, pred query.IPredicate, fields storage.Record) (storage.Record, error) {
	current, err := h.one(ctx, pred)
	if err != nil {
		return nil, err
	}
	id := current[storage.IDField]
	update, err := setDocument(fields)
	if err != nil {
		return nil, err
	}
	if len(update[0].Value.(bson.M)) > 0 {
		if _, err := h.coll.UpdateByID(ctx, id, update); err != nil {
			return nil, mapError(err, fmt.Sprintf("unable to update %s", h.model.Table))
		}
	}
	return h.one(ctx, query.NewComparison(storage.IDField, operators.OperatorEq, id))
}

func (h *modelHandle) BulkUpdate(ctx context.Context, pred query.IPredicate, fields storage.Record) (int64, error) {
	f, err := h.filter(pred)
	if err != nil {
		return 0, err
	}
	update, err := setDocument(fields)
	if err != nil {
		return 0, err
	}
	if len(update[0].Value.(bson.M)) == 0 {
		return h.count(ctx, pred)
	}
	result, err := h.coll.UpdateMany(ctx, f, update)
	if err != nil {
		return 0, mapError(err, fmt.Sprintf("unable to update %s", h.model.Table))
	}
	return result.MatchedCount, nil
}

func (h *modelHandle) Delete(ctx context.Context, pred query.IPredicate) error {
	current, err := h.one(ctx, pred)
	if err != nil {
		return err
	}
	if _, err := h.coll.DeleteOne(ctx, field(idKey, current[storage.IDField])); err != nil {
		return mapError(err, fmt.Sprintf("unable to delete from %s", h.model.Table))
	}
	return nil
}

func (h *modelHandle) BulkDelete(ctx context.Context, pred query.IPredicate) (int64, error) {
	f, err := h.filter(pred)
	if err != nil {
		return 0, err
	}
	result, err := h.coll.DeleteMany(ctx, f)
	if err != nil {
		return 0, mapError(err, fmt.Sprintf("unable to delete from %s", h.model.Table))
	}
	return result.DeletedCount, nil
}

// encodeDocument returns the document to insert and the record it stores.
func encodeDocument(id int64, fields storage.Record) (bson.M, storage.Record, error) {
	record, err := storage.Canonical(fields)
	if err != nil {
		return nil, nil, err
	}
	delete(record, storage.IDField)
	delete(record, idKey)
	doc := make(bson.M, len(record)+1)
	for k, v := range record {
		doc[k] = v
	}
	doc[idKey] = id
	record[storage.IDField] = id
	return doc, record, nil
}

func decodeDocument(doc bson.M) storage.Record {
	record := make(storage.Record, len(doc))
	for k, v := range doc {
		if k == idKey {
			record[storage.IDField] = operators.Normalize(v)
			continue
		}
		record[k] = decodeValue(v)
	}
	return record
}

func decodeValue(value any) any {
	switch v := value.(type) {
	case bson.M:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = decodeValue(item)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(v))
		for _, e := range v {
			out[e.Key] = decodeValue(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = decodeValue(item)
		}
		return out
	case primitive.DateTime:
		return v.Time()
	}
	return operators.Normalize(value)
}
