package query

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query/operators"
)

// EvaluateVisitor evaluates a predicate against record state with SQL NULL
// semantics. Results are true, false or nil (unknown).
// State is carried in the instance.
type EvaluateVisitor struct {
	state    any
	registry *operators.OperatorRegistry
}

func NewEvaluateVisitor(state any, registry *operators.OperatorRegistry) *EvaluateVisitor {
	if registry == nil {
		registry = operators.NewDefaultRegistry()
	}
	return &EvaluateVisitor{state: state, registry: registry}
}

func (v *EvaluateVisitor) VisitComparison(p Comparison) (any, error) {
	actual, _ := getPathValue(v.state, p.Path)

	switch p.Operator {
	case operators.OperatorEq, operators.OperatorNe:
		// Equality with nil matches missing and null fields.
		if p.Value == nil {
			return (actual == nil) == (p.Operator == operators.OperatorEq), nil
		}
		if actual == nil {
			return nil, nil
		}
		if expected, ok := asSequence(p.Value); ok {
			equal := reflect.DeepEqual(normalizeList(actual), normalizeList(expected))
			return equal == (p.Operator == operators.OperatorEq), nil
		}
	case operators.OperatorIn, operators.OperatorNotIn:
		values, ok := asSequence(p.Value)
		if !ok {
			return nil, fmt.Errorf("operator %s requires a list, got %T", p.Operator, p.Value)
		}
		return v.registry.ExecBinary(actual, p.Operator, values)
	}

	result, err := v.registry.ExecBinary(actual, p.Operator, p.Value)
	if errors.Is(err, operators.ErrUnsupportedOperands) {
		// Values of different types are never equal, and never ordered.
		switch p.Operator {
		case operators.OperatorEq:
			return false, nil
		case operators.OperatorNe:
			return true, nil
		}
		return nil, nil
	}
	return result, err
}

func (v *EvaluateVisitor) VisitCombine(p Combine) (any, error) {
	var acc any = p.Operator == operators.OperatorAnd
	for _, child := range p.Children {
		result, err := child.Accept(v)
		if err != nil {
			return nil, err
		}
		acc, err = v.registry.ExecBinary(acc, p.Operator, result)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func (v *EvaluateVisitor) VisitNegate(p Negate) (any, error) {
	result, err := p.Child.Accept(v)
	if err != nil {
		return nil, err
	}
	return v.registry.ExecUnary(operators.OperatorNot, result)
}

// Matches reports whether state satisfies pred. Unknown counts as no match.
func Matches(pred IPredicate, state any, registry *operators.OperatorRegistry) (bool, error) {
	result, err := pred.Accept(NewEvaluateVisitor(state, registry))
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	return ok && b, nil
}

func normalizeList(value any) any {
	list, ok := asSequence(value)
	if !ok {
		return operators.Normalize(value)
	}
	out := make([]any, len(list))
	for i, item := range list {
		out[i] = normalizeList(item)
	}
	return out
}

// getPathValue resolves a dotted path through nested maps and structs.
func getPathValue(state any, path string) (any, bool) {
	current := state
	for _, field := range strings.Split(path, ".") {
		value, found := getFieldValue(current, field)
		if !found {
			return nil, false
		}
		current = value
	}
	return current, true
}

func getFieldValue(state any, field string) (any, bool) {
	if state == nil {
		return nil, false
	}
	if m, ok := state.(map[string]any); ok {
		v, found := m[field]
		return v, found
	}
	v := reflect.ValueOf(state)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, false
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if name == field || (name == "" && sf.Name == field) {
			return v.Field(i).Interface(), true
		}
	}
	return nil, false
}
