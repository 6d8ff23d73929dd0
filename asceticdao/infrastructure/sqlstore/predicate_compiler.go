package sqlstore

import (
	"fmt"
	"strings"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query/operators"
)

// PredicateCompiler renders a predicate tree as a WHERE clause with "?" markers.
type PredicateCompiler struct {
	dialect Dialect
	params  []any
}

func NewPredicateCompiler(dialect Dialect) *PredicateCompiler {
	return &PredicateCompiler{dialect: dialect}
}

func (c *PredicateCompiler) Compile(pred query.IPredicate) (string, []any, error) {
	c.params = nil
	if pred == nil {
		pred = query.True()
	}
	sql, err := pred.Accept(c)
	if err != nil {
		return "", nil, err
	}
	return sql.(string), c.params, nil
}

func (c *PredicateCompiler) VisitComparison(p query.Comparison) (any, error) {
	if p.Path == idColumn {
		return c.compareID(p)
	}
	sql, params, err := c.dialect.Compare(strings.Split(p.Path, "."), p.Operator, p.Value)
	if err != nil {
		return nil, err
	}
	c.params = append(c.params, params...)
	return sql, nil
}

// compareID compares the integer primary key column.
func (c *PredicateCompiler) compareID(p query.Comparison) (any, error) {
	switch p.Operator {
	case operators.OperatorIn, operators.OperatorNotIn:
		values, ok := p.Value.([]any)
		if !ok {
			return nil, fmt.Errorf("operator %s requires a list, got %T", p.Operator, p.Value)
		}
		if len(values) == 0 {
			if p.Operator == operators.OperatorIn {
				return "1=0", nil
			}
			return "1=1", nil
		}
		var markers []string
		for _, v := range values {
			if v == nil {
				markers = append(markers, "NULL")
				continue
			}
			if id, ok := numericID(v); ok {
				markers = append(markers, "?")
				c.params = append(c.params, id)
			}
		}
		if len(markers) == 0 {
			if p.Operator == operators.OperatorIn {
				return "1=0", nil
			}
			return "1=1", nil
		}
		return fmt.Sprintf("%s %s (%s)", idColumn, p.Operator, strings.Join(markers, ", ")), nil
	}
	if p.Value == nil {
		switch p.Operator {
		case operators.OperatorEq:
			return idColumn + " IS NULL", nil
		case operators.OperatorNe:
			return idColumn + " IS NOT NULL", nil
		}
		return "NULL", nil
	}
	sqlOp, err := sqlOperator(p.Operator)
	if err != nil {
		return nil, err
	}
	id, ok := numericID(p.Value)
	if !ok {
		switch p.Operator {
		case operators.OperatorEq:
			return "1=0", nil
		case operators.OperatorNe:
			return "1=1", nil
		}
		return "NULL", nil
	}
	c.params = append(c.params, id)
	return fmt.Sprintf("%s %s ?", idColumn, sqlOp), nil
}

func numericID(value any) (any, bool) {
	switch v := operators.Normalize(value).(type) {
	case int64, float64:
		return v, true
	}
	return nil, false
}

func (c *PredicateCompiler) VisitCombine(p query.Combine) (any, error) {
	if len(p.Children) == 0 {
		if p.Operator == operators.OperatorOr {
			return "1=0", nil
		}
		return "1=1", nil
	}
	parts := make([]string, len(p.Children))
	for i, child := range p.Children {
		sql, err := child.Accept(c)
		if err != nil {
			return nil, err
		}
		parts[i] = sql.(string)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, fmt.Sprintf(" %s ", p.Operator)) + ")", nil
}

func (c *PredicateCompiler) VisitNegate(p query.Negate) (any, error) {
	sql, err := p.Child.Accept(c)
	if err != nil {
		return nil, err
	}
	return "NOT (" + sql.(string) + ")", nil
}
