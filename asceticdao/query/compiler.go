package query

import (
	"strings"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query/operators"
)

type comparisonOperator struct {
	op      operators.Operator
	negated bool
	list    bool
}

var comparisonOperators = map[string]comparisonOperator{
	"$eq":  {op: operators.OperatorEq},
	"$ne":  {op: operators.OperatorEq, negated: true},
	"$gt":  {op: operators.OperatorGt},
	"$gte": {op: operators.OperatorGte},
	"$lt":  {op: operators.OperatorLt},
	"$lte": {op: operators.OperatorLte},
	"$in":  {op: operators.OperatorIn, list: true},
	"$nin": {op: operators.OperatorIn, negated: true, list: true},
}

// Two-character prefixes precede their one-character subsets.
var inlinePrefixes = []struct {
	prefix  string
	op      operators.Operator
	negated bool
}{
	{">=", operators.OperatorGte, false},
	{">", operators.OperatorGt, false},
	{"<=", operators.OperatorLte, false},
	{"<", operators.OperatorLt, false},
	{"!=", operators.OperatorEq, true},
	{"=", operators.OperatorEq, false},
}

type compileOptions struct {
	alreadyValidated bool
}

type CompileOption func(*compileOptions)

// AlreadyValidated skips Validate for input that has passed it before.
func AlreadyValidated() CompileOption {
	return func(o *compileOptions) {
		o.alreadyValidated = true
	}
}

// Compile validates filters and translates them into a predicate tree whose
// root is always an AND. An empty mapping compiles to True().
func Compile(filters map[string]any, opts ...CompileOption) (IPredicate, error) {
	var o compileOptions
	for _, opt := range opts {
		opt(&o)
	}
	if !o.alreadyValidated {
		if _, err := Validate(filters); err != nil {
			return nil, err
		}
	}
	expr, err := ParseExpression(filters)
	if err != nil {
		return nil, err
	}
	pred, err := CompileExpression(expr)
	if err != nil {
		return nil, err
	}
	return pred, nil
}

func CompileExpression(expr Expression) (Combine, error) {
	children := make([]IPredicate, 0, len(expr.Terms))
	for _, term := range expr.Terms {
		nodes, err := compileTerm(term)
		if err != nil {
			return Combine{}, err
		}
		children = append(children, nodes...)
	}
	return And(children...), nil
}

func compileTerm(term Term) ([]IPredicate, error) {
	switch t := term.(type) {
	case CombinatorTerm:
		members := make([]IPredicate, 0, len(t.Members))
		for _, member := range t.Members {
			compiled, err := CompileExpression(member)
			if err != nil {
				return nil, err
			}
			members = append(members, unwrapSingle(compiled))
		}
		if t.Combinator == CombinatorOr {
			return []IPredicate{Or(members...)}, nil
		}
		return []IPredicate{And(members...)}, nil

	case OperatorTerm:
		nodes := make([]IPredicate, 0, len(t.Operators))
		for _, ov := range t.Operators {
			node, err := compileOperator(t.Field, ov)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		}
		return nodes, nil

	case FieldTerm:
		node, err := compileLeaf(t.Field, t.Value)
		if err != nil {
			return nil, err
		}
		return []IPredicate{node}, nil
	}
	return nil, Invalidf("unsupported filter term %T", term)
}

func compileOperator(field string, ov OperatorValue) (IPredicate, error) {
	spec, ok := comparisonOperators[ov.Operator]
	if !ok {
		return nil, Invalidf("unsupported operator %s for field %s", ov.Operator, field)
	}
	value := ov.Value
	if list, isList := asSequence(value); isList {
		if !spec.list && spec.op != operators.OperatorEq {
			return nil, Invalidf("value for %s should be a scalar", ov.Operator)
		}
		value = list
	} else if spec.list {
		return nil, Invalidf("value for %s should be of type list", ov.Operator)
	}
	return comparison(field, spec.op, value, spec.negated), nil
}

func compileLeaf(field string, value any) (IPredicate, error) {
	s, ok := value.(string)
	if !ok {
		return comparison(field, operators.OperatorEq, value, false), nil
	}
	for _, p := range inlinePrefixes {
		if !strings.HasPrefix(s, p.prefix) {
			continue
		}
		number, err := ParseNumber(strings.TrimPrefix(s, p.prefix))
		if err != nil {
			return nil, &InvalidQueryError{Message: err.Error(), Err: err}
		}
		return comparison(field, p.op, number, p.negated), nil
	}
	return comparison(field, operators.OperatorEq, s, false), nil
}

func comparison(field string, op operators.Operator, value any, negated bool) IPredicate {
	node := NewComparison(field, op, value)
	if negated {
		return Not(node)
	}
	return node
}

// unwrapSingle lets {"$and": [{"a": 1}]} compile to AND(a = 1) rather than AND(AND(a = 1)).
func unwrapSingle(c Combine) IPredicate {
	if len(c.Children) == 1 {
		return c.Children[0]
	}
	return c
}
