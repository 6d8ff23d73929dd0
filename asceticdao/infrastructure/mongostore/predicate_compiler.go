package mongostore

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query/operators"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/storage"
)

const idKey = "_id"

// never matches no document.
var never = bson.D{{Key: "$expr", Value: false}}

// filterPair holds the filters selecting documents for which a predicate is
// true and for which it is false. Documents matching neither are unknown,
// which keeps negation three-valued like SQL.
type filterPair struct {
	truthy bson.D
	falsy  bson.D
}

// PredicateCompiler renders a predicate tree as a query filter.
type PredicateCompiler struct{}

func NewPredicateCompiler() *PredicateCompiler {
	return &PredicateCompiler{}
}

func (c *PredicateCompiler) Compile(pred query.IPredicate) (bson.D, error) {
	if pred == nil {
		pred = query.True()
	}
	result, err := pred.Accept(c)
	if err != nil {
		return nil, err
	}
	return result.(filterPair).truthy, nil
}

func fieldKey(path string) string {
	if path == storage.IDField {
		return idKey
	}
	return path
}

func field(key string, cond any) bson.D {
	return bson.D{{Key: key, Value: cond}}
}

// notArray stops a scalar condition from matching array elements.
func notArray(key string) bson.D {
	return field(key, bson.D{{Key: "$not", Value: bson.D{{Key: "$type", Value: "array"}}}})
}

func and(filters ...bson.D) bson.D {
	return bson.D{{Key: "$and", Value: filters}}
}

func or(filters ...bson.D) bson.D {
	return bson.D{{Key: "$or", Value: filters}}
}

func bsonValue(value any) any {
	if list, ok := value.([]any); ok {
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = bsonValue(item)
		}
		return out
	}
	return operators.Normalize(value)
}

var mongoOperators = map[operators.Operator]struct{ op, inverse string }{
	operators.OperatorGt:  {"$gt", "$lte"},
	operators.OperatorGte: {"$gte", "$lt"},
	operators.OperatorLt:  {"$lt", "$gte"},
	operators.OperatorLte: {"$lte", "$gt"},
}

func (c *PredicateCompiler) VisitComparison(p query.Comparison) (any, error) {
	key := fieldKey(p.Path)
	value := bsonValue(p.Value)

	switch p.Operator {
	case operators.OperatorEq:
		if value == nil {
			// null matches both missing and null fields
			return filterPair{
				truthy: field(key, bson.D{{Key: "$eq", Value: nil}}),
				falsy:  field(key, bson.D{{Key: "$ne", Value: nil}}),
			}, nil
		}
		pair := filterPair{
			truthy: field(key, bson.D{{Key: "$eq", Value: value}}),
			falsy:  field(key, bson.D{{Key: "$nin", Value: []any{value, nil}}}),
		}
		if _, isList := value.([]any); !isList {
			// an array never equals a scalar
			pair.truthy = and(pair.truthy, notArray(key))
			pair.falsy = or(field(key, bson.D{{Key: "$type", Value: "array"}}), pair.falsy)
		}
		return pair, nil

	case operators.OperatorIn:
		values, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("operator %s requires a list, got %T", p.Operator, p.Value)
		}
		known := make([]any, 0, len(values))
		sawNull := false
		for _, v := range values {
			if v == nil {
				sawNull = true
				continue
			}
			known = append(known, v)
		}
		pair := filterPair{
			truthy: and(field(key, bson.D{{Key: "$in", Value: known}}), notArray(key)),
			falsy:  or(field(key, bson.D{{Key: "$type", Value: "array"}}), field(key, bson.D{{Key: "$nin", Value: append(known, nil)}})),
		}
		if len(known) == 0 {
			pair.truthy = never
		}
		if sawNull {
			pair.falsy = never
		}
		return pair, nil
	}

	ops, ok := mongoOperators[p.Operator]
	if !ok {
		return nil, fmt.Errorf("operator %s has no query form", p.Operator)
	}
	if value == nil {
		return filterPair{truthy: never, falsy: never}, nil
	}
	return filterPair{
		truthy: and(field(key, bson.D{{Key: ops.op, Value: value}}), notArray(key)),
		falsy:  and(field(key, bson.D{{Key: ops.inverse, Value: value}}), notArray(key)),
	}, nil
}

func (c *PredicateCompiler) VisitCombine(p query.Combine) (any, error) {
	if len(p.Children) == 0 {
		if p.Operator == operators.OperatorOr {
			return filterPair{truthy: never, falsy: bson.D{}}, nil
		}
		return filterPair{truthy: bson.D{}, falsy: never}, nil
	}
	truthy := make([]bson.D, len(p.Children))
	falsy := make([]bson.D, len(p.Children))
	for i, child := range p.Children {
		result, err := child.Accept(c)
		if err != nil {
			return nil, err
		}
		pair := result.(filterPair)
		truthy[i], falsy[i] = pair.truthy, pair.falsy
	}
	if len(p.Children) == 1 {
		return filterPair{truthy: truthy[0], falsy: falsy[0]}, nil
	}
	if p.Operator == operators.OperatorOr {
		return filterPair{truthy: or(truthy...), falsy: and(falsy...)}, nil
	}
	return filterPair{truthy: and(truthy...), falsy: or(falsy...)}, nil
}

func (c *PredicateCompiler) VisitNegate(p query.Negate) (any, error) {
	result, err := p.Child.Accept(c)
	if err != nil {
		return nil, err
	}
	pair := result.(filterPair)
	return filterPair{truthy: pair.falsy, falsy: pair.truthy}, nil
}
