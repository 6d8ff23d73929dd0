package query

import "strings"

type Combinator string

const (
	CombinatorAnd Combinator = "$and"
	CombinatorOr  Combinator = "$or"
)

// Term is one entry of an Expression: FieldTerm, OperatorTerm or CombinatorTerm.
type Term interface {
	isTerm()
}

// FieldTerm is `field: value` where value is a scalar or an inline comparison string.
type FieldTerm struct {
	Field string
	Value any
}

type OperatorValue struct {
	Operator string
	Value    any
}

// OperatorTerm is `field: {"$op": value, ...}`.
type OperatorTerm struct {
	Field     string
	Operators []OperatorValue
}

type CombinatorTerm struct {
	Combinator Combinator
	Members    []Expression
}

func (FieldTerm) isTerm()      {}
func (OperatorTerm) isTerm()   {}
func (CombinatorTerm) isTerm() {}

// Expression is a filter mapping parsed into terms. Field terms come first in
// key order, followed by $and and then $or.
type Expression struct {
	Terms []Term
}

// ParseExpression builds an Expression from a filter that already passed Validate.
func ParseExpression(filters map[string]any) (Expression, error) {
	var (
		fields      []Term
		combinators []Term
	)
	for _, key := range sortedKeys(filters) {
		value := filters[key]
		switch {
		case key == string(CombinatorAnd) || key == string(CombinatorOr):
			term, err := parseCombinator(Combinator(key), value)
			if err != nil {
				return Expression{}, err
			}
			combinators = append(combinators, term)
		case strings.HasPrefix(key, operatorPrefix):
			return Expression{}, Invalidf("operator %s requires a field", key)
		default:
			term, err := parseField(key, value)
			if err != nil {
				return Expression{}, err
			}
			fields = append(fields, term)
		}
	}
	// "$and" sorts before "$or", so combinators are already in order.
	return Expression{Terms: append(fields, combinators...)}, nil
}

func parseCombinator(c Combinator, value any) (Term, error) {
	list, ok := asSequence(value)
	if !ok {
		return nil, Invalidf("value for %s should be of type list", c)
	}
	members := make([]Expression, 0, len(list))
	for _, item := range list {
		m, ok := asMapping(item)
		if !ok {
			return nil, Invalidf("invalid value %v in filter", item)
		}
		member, err := ParseExpression(m)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return CombinatorTerm{Combinator: c, Members: members}, nil
}

func parseField(field string, value any) (Term, error) {
	m, ok := asMapping(value)
	if !ok {
		return FieldTerm{Field: field, Value: value}, nil
	}
	ops := make([]OperatorValue, 0, len(m))
	for _, key := range sortedKeys(m) {
		if _, ok := comparisonOperators[key]; !ok {
			return nil, Invalidf("unsupported operator %s for field %s", key, field)
		}
		ops = append(ops, OperatorValue{Operator: key, Value: m[key]})
	}
	return OperatorTerm{Field: field, Operators: ops}, nil
}
