package operators

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// ErrUnsupportedOperands means no comparison is registered for the operand types.
var ErrUnsupportedOperands = errors.New("unsupported operands")

type BinaryOp func(left, right any) (any, error)
type UnaryOp func(operand any) (any, error)

type binaryKey struct {
	left  reflect.Type
	op    Operator
	right reflect.Type
}

type unaryKey struct {
	op      Operator
	operand reflect.Type
}

type OperatorRegistry struct {
	binary map[binaryKey]BinaryOp
	unary  map[unaryKey]UnaryOp
}

func NewOperatorRegistry() *OperatorRegistry {
	return &OperatorRegistry{
		binary: make(map[binaryKey]BinaryOp),
		unary:  make(map[unaryKey]UnaryOp),
	}
}

func RegisterBinary[L, R any](reg *OperatorRegistry, op Operator, fn func(L, R) (any, error)) {
	var zeroL L
	var zeroR R
	key := binaryKey{
		left:  reflect.TypeOf(zeroL),
		op:    op,
		right: reflect.TypeOf(zeroR),
	}
	reg.binary[key] = func(left, right any) (any, error) {
		return fn(left.(L), right.(R))
	}
}

func RegisterUnary[T any](reg *OperatorRegistry, op Operator, fn func(T) (any, error)) {
	var zero T
	key := unaryKey{
		op:      op,
		operand: reflect.TypeOf(zero),
	}
	reg.unary[key] = func(operand any) (any, error) {
		return fn(operand.(T))
	}
}

// ExecBinary executes a binary operator with SQL NULL semantics.
// Numeric operands are normalized first, so int32(3) = json.Number("3") holds.
func (r *OperatorRegistry) ExecBinary(left any, op Operator, right any) (any, error) {
	if op == OperatorAnd {
		return execAnd(left, right)
	}
	if op == OperatorOr {
		return execOr(left, right)
	}
	if op == OperatorIn || op == OperatorNotIn {
		values, ok := right.([]any)
		if !ok {
			return nil, fmt.Errorf("operator \"%s\" requires a list, got %T", op, right)
		}
		result, err := r.ExecIn(left, values)
		if err != nil || op == OperatorIn || result == nil {
			return result, err
		}
		return !result.(bool), nil
	}

	if left == nil || right == nil {
		return nil, nil
	}
	left, right = Normalize(left), Normalize(right)

	fn, err := r.lookupBinary(left, op, right)
	if err != nil {
		return nil, err
	}
	return fn(left, right)
}

// ExecIn is `left IN (values...)`: true on the first match, NULL when there is
// no match but the list holds a NULL, false otherwise. An empty list is false.
// Elements of a type not comparable with left never match.
func (r *OperatorRegistry) ExecIn(left any, values []any) (any, error) {
	if left == nil {
		if len(values) == 0 {
			return false, nil
		}
		return nil, nil
	}
	sawNull := false
	for _, v := range values {
		res, err := r.ExecBinary(left, OperatorEq, v)
		if errors.Is(err, ErrUnsupportedOperands) {
			continue
		}
		if err != nil {
			return nil, err
		}
		switch res {
		case true:
			return true, nil
		case nil:
			sawNull = true
		}
	}
	if sawNull {
		return nil, nil
	}
	return false, nil
}

// ExecUnary executes a unary operator with SQL NULL semantics.
func (r *OperatorRegistry) ExecUnary(op Operator, operand any) (any, error) {
	// IS NULL / IS NOT NULL give a definite result even for NULL
	if op == OperatorIsNull {
		return operand == nil, nil
	}
	if op == OperatorIsNotNull {
		return operand != nil, nil
	}

	if operand == nil {
		return nil, nil
	}

	fn, err := r.lookupUnary(op, operand)
	if err != nil {
		return nil, err
	}
	return fn(operand)
}

func (r *OperatorRegistry) lookupBinary(left any, op Operator, right any) (BinaryOp, error) {
	key := binaryKey{
		left:  reflect.TypeOf(left),
		op:    op,
		right: reflect.TypeOf(right),
	}
	fn, ok := r.binary[key]
	if ok {
		return fn, nil
	}

	return nil, fmt.Errorf("operator \"%s\" is not supported for %T and %T: %w", op, left, right, ErrUnsupportedOperands)
}

func (r *OperatorRegistry) lookupUnary(op Operator, operand any) (UnaryOp, error) {
	key := unaryKey{
		op:      op,
		operand: reflect.TypeOf(operand),
	}
	fn, ok := r.unary[key]
	if !ok {
		return nil, fmt.Errorf("operator \"%s\" is not supported for %T: %w", op, operand, ErrUnsupportedOperands)
	}
	return fn, nil
}

// Normalize folds the numeric kinds onto int64 and float64 so that values
// decoded by different drivers compare with each other.
func Normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint:
		return normalizeUint(uint64(n))
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return normalizeUint(n)
	case float32:
		return float64(n)
	case json.Number:
		if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(string(n), 64); err == nil {
			return f
		}
		return string(n)
	}
	return v
}

func normalizeUint(n uint64) any {
	if n > math.MaxInt64 {
		return float64(n)
	}
	return int64(n)
}

// Three-valued logic: NULL AND FALSE = FALSE, NULL AND TRUE = NULL
func execAnd(left, right any) (any, error) {
	if left == nil {
		if val, ok := right.(bool); ok && !val {
			return false, nil
		}
		return nil, nil
	}
	if right == nil {
		if val, ok := left.(bool); ok && !val {
			return false, nil
		}
		return nil, nil
	}
	l, ok := left.(bool)
	if !ok {
		return nil, fmt.Errorf("operator \"AND\" requires bool, got %T", left)
	}
	r, ok := right.(bool)
	if !ok {
		return nil, fmt.Errorf("operator \"AND\" requires bool, got %T", right)
	}
	return l && r, nil
}

// Three-valued logic: NULL OR TRUE = TRUE, NULL OR FALSE = NULL
func execOr(left, right any) (any, error) {
	if left == nil {
		if val, ok := right.(bool); ok && val {
			return true, nil
		}
		return nil, nil
	}
	if right == nil {
		if val, ok := left.(bool); ok && val {
			return true, nil
		}
		return nil, nil
	}
	l, ok := left.(bool)
	if !ok {
		return nil, fmt.Errorf("operator \"OR\" requires bool, got %T", left)
	}
	r, ok := right.(bool)
	if !ok {
		return nil, fmt.Errorf("operator \"OR\" requires bool, got %T", right)
	}
	return l || r, nil
}
