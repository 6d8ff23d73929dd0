package operators

type Operator string

const (
	// Comparison

	OperatorEq    Operator = "="
	OperatorNe    Operator = "!="
	OperatorGt    Operator = ">"
	OperatorGte   Operator = ">="
	OperatorLt    Operator = "<"
	OperatorLte   Operator = "<="
	OperatorIn    Operator = "IN"
	OperatorNotIn Operator = "NOT IN"

	// Logical operators

	OperatorAnd Operator = "AND"
	OperatorOr  Operator = "OR"
	OperatorNot Operator = "NOT"

	// Postfix

	OperatorIsNull    Operator = "IS NULL"
	OperatorIsNotNull Operator = "IS NOT NULL"
)

// Negated returns the operator whose result is the logical complement
// for non-NULL operands, and false when there is none.
func (o Operator) Negated() (Operator, bool) {
	switch o {
	case OperatorEq:
		return OperatorNe, true
	case OperatorNe:
		return OperatorEq, true
	case OperatorGt:
		return OperatorLte, true
	case OperatorGte:
		return OperatorLt, true
	case OperatorLt:
		return OperatorGte, true
	case OperatorLte:
		return OperatorGt, true
	case OperatorIn:
		return OperatorNotIn, true
	case OperatorNotIn:
		return OperatorIn, true
	case OperatorIsNull:
		return OperatorIsNotNull, true
	case OperatorIsNotNull:
		return OperatorIsNull, true
	}
	return "", false
}
