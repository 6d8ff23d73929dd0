package query

import (
	"fmt"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query/operators"
)

var operatorKeys = map[operators.Operator]string{
	operators.OperatorEq:    "$eq",
	operators.OperatorNe:    "$ne",
	operators.OperatorGt:    "$gt",
	operators.OperatorGte:   "$gte",
	operators.OperatorLt:    "$lt",
	operators.OperatorLte:   "$lte",
	operators.OperatorIn:    "$in",
	operators.OperatorNotIn: "$nin",
}

// PredicateToDictVisitor renders a predicate tree as a tagged map, e.g.
// {"op": "AND", "children": [{"path": "age", "op": ">=", "value": 30}]}.
type PredicateToDictVisitor struct{}

func (v PredicateToDictVisitor) Visit(p IPredicate) (map[string]any, error) {
	result, err := p.Accept(v)
	if err != nil {
		return nil, err
	}
	return result.(map[string]any), nil
}

func (v PredicateToDictVisitor) VisitComparison(p Comparison) (any, error) {
	return map[string]any{"path": p.Path, "op": string(p.Operator), "value": p.Value}, nil
}

func (v PredicateToDictVisitor) VisitCombine(p Combine) (any, error) {
	children := make([]any, len(p.Children))
	for i, child := range p.Children {
		item, err := child.Accept(v)
		if err != nil {
			return nil, err
		}
		children[i] = item
	}
	return map[string]any{"op": string(p.Operator), "children": children}, nil
}

func (v PredicateToDictVisitor) VisitNegate(p Negate) (any, error) {
	child, err := p.Child.Accept(v)
	if err != nil {
		return nil, err
	}
	return map[string]any{"op": string(operators.OperatorNot), "child": child}, nil
}

// PredicateToDict is a shortcut for PredicateToDictVisitor.Visit.
func PredicateToDict(p IPredicate) (map[string]any, error) {
	return PredicateToDictVisitor{}.Visit(p)
}

// PredicateToFilterVisitor renders a predicate back into the filter language.
// Negated equality and membership come back as $ne and $nin.
type PredicateToFilterVisitor struct{}

func (v PredicateToFilterVisitor) VisitComparison(p Comparison) (any, error) {
	key, ok := operatorKeys[p.Operator]
	if !ok {
		return nil, fmt.Errorf("operator %s has no filter form", p.Operator)
	}
	return map[string]any{p.Path: map[string]any{key: p.Value}}, nil
}

func (v PredicateToFilterVisitor) VisitCombine(p Combine) (any, error) {
	members := make([]any, len(p.Children))
	for i, child := range p.Children {
		item, err := child.Accept(v)
		if err != nil {
			return nil, err
		}
		members[i] = item
	}
	if p.Operator == operators.OperatorOr {
		return map[string]any{"$or": members}, nil
	}
	return map[string]any{"$and": members}, nil
}

func (v PredicateToFilterVisitor) VisitNegate(p Negate) (any, error) {
	c, ok := p.Child.(Comparison)
	if !ok {
		return nil, fmt.Errorf("negation of %s has no filter form", p.Child)
	}
	negated, ok := c.Operator.Negated()
	if !ok {
		return nil, fmt.Errorf("operator %s has no negated form", c.Operator)
	}
	return v.VisitComparison(Comparison{Path: c.Path, Operator: negated, Value: c.Value})
}

// PredicateToFilter renders p as a filter mapping that compiles back to an
// equivalent predicate.
func PredicateToFilter(p IPredicate) (map[string]any, error) {
	result, err := p.Accept(PredicateToFilterVisitor{})
	if err != nil {
		return nil, err
	}
	return result.(map[string]any), nil
}
