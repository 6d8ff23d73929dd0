package query

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query/operators"
)

type IPredicateVisitor interface {
	VisitComparison(p Comparison) (any, error)
	VisitCombine(p Combine) (any, error)
	VisitNegate(p Negate) (any, error)
}

// IPredicate is a node of a compiled, immutable predicate tree.
type IPredicate interface {
	Accept(visitor IPredicateVisitor) (any, error)
	Equal(other IPredicate) bool
	String() string
}

// Comparison is a leaf: Path Operator Value.
// Path uses "." between nested field names.
type Comparison struct {
	Path     string
	Operator operators.Operator
	Value    any
}

// NewComparison stores numbers as int64 or float64, so 30 and int64(30) compare equal.
func NewComparison(path string, op operators.Operator, value any) Comparison {
	if list, ok := value.([]any); ok {
		normalized := make([]any, len(list))
		for i, item := range list {
			normalized[i] = operators.Normalize(item)
		}
		value = normalized
	} else {
		value = operators.Normalize(value)
	}
	return Comparison{Path: path, Operator: op, Value: value}
}

func (p Comparison) Accept(visitor IPredicateVisitor) (any, error) {
	return visitor.VisitComparison(p)
}

func (p Comparison) Equal(other IPredicate) bool {
	o, ok := other.(Comparison)
	if !ok {
		return false
	}
	return p.Path == o.Path && p.Operator == o.Operator && reflect.DeepEqual(p.Value, o.Value)
}

func (p Comparison) String() string {
	return fmt.Sprintf("Comparison(%s %s %v)", p.Path, p.Operator, p.Value)
}

// Combine joins Children with AND or OR. An AND without children always holds.
type Combine struct {
	Operator operators.Operator
	Children []IPredicate
}

func And(children ...IPredicate) Combine {
	return Combine{Operator: operators.OperatorAnd, Children: append([]IPredicate(nil), children...)}
}

func Or(children ...IPredicate) Combine {
	return Combine{Operator: operators.OperatorOr, Children: append([]IPredicate(nil), children...)}
}

// True is the predicate every record satisfies.
func True() Combine {
	return And()
}

// IsTrue reports whether p is the unconditional predicate.
func IsTrue(p IPredicate) bool {
	c, ok := p.(Combine)
	return ok && c.Operator == operators.OperatorAnd && len(c.Children) == 0
}

func (p Combine) Accept(visitor IPredicateVisitor) (any, error) {
	return visitor.VisitCombine(p)
}

func (p Combine) Equal(other IPredicate) bool {
	o, ok := other.(Combine)
	if !ok || p.Operator != o.Operator || len(p.Children) != len(o.Children) {
		return false
	}
	for i := range p.Children {
		if !p.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}

func (p Combine) String() string {
	parts := make([]string, len(p.Children))
	for i, child := range p.Children {
		parts[i] = child.String()
	}
	return fmt.Sprintf("Combine(%s, [%s])", p.Operator, strings.Join(parts, ", "))
}

type Negate struct {
	Child IPredicate
}

func Not(child IPredicate) Negate {
	return Negate{Child: child}
}

func (p Negate) Accept(visitor IPredicateVisitor) (any, error) {
	return visitor.VisitNegate(p)
}

func (p Negate) Equal(other IPredicate) bool {
	o, ok := other.(Negate)
	if !ok {
		return false
	}
	return p.Child.Equal(o.Child)
}

func (p Negate) String() string {
	return fmt.Sprintf("Negate(%s)", p.Child)
}
