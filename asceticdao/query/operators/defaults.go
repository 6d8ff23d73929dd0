package operators

import (
	"cmp"
	"time"
)

func registerComparison[T cmp.Ordered](reg *OperatorRegistry) {
	RegisterBinary[T, T](reg, OperatorEq, func(a, b T) (any, error) { return a == b, nil })
	RegisterBinary[T, T](reg, OperatorNe, func(a, b T) (any, error) { return a != b, nil })
	RegisterBinary[T, T](reg, OperatorGt, func(a, b T) (any, error) { return a > b, nil })
	RegisterBinary[T, T](reg, OperatorGte, func(a, b T) (any, error) { return a >= b, nil })
	RegisterBinary[T, T](reg, OperatorLt, func(a, b T) (any, error) { return a < b, nil })
	RegisterBinary[T, T](reg, OperatorLte, func(a, b T) (any, error) { return a <= b, nil })
}

// registerMixed compares L against R after widening both sides with conv.
func registerMixed[L, R any, T cmp.Ordered](reg *OperatorRegistry, convL func(L) T, convR func(R) T) {
	RegisterBinary[L, R](reg, OperatorEq, func(a L, b R) (any, error) { return convL(a) == convR(b), nil })
	RegisterBinary[L, R](reg, OperatorNe, func(a L, b R) (any, error) { return convL(a) != convR(b), nil })
	RegisterBinary[L, R](reg, OperatorGt, func(a L, b R) (any, error) { return convL(a) > convR(b), nil })
	RegisterBinary[L, R](reg, OperatorGte, func(a L, b R) (any, error) { return convL(a) >= convR(b), nil })
	RegisterBinary[L, R](reg, OperatorLt, func(a L, b R) (any, error) { return convL(a) < convR(b), nil })
	RegisterBinary[L, R](reg, OperatorLte, func(a L, b R) (any, error) { return convL(a) <= convR(b), nil })
}

func toFloat(v int64) float64 { return float64(v) }
func sameFloat(v float64) float64 { return v }

// NewDefaultRegistry creates a registry with SQL-compatible comparison
// operators for the scalar types records are decoded into.
func NewDefaultRegistry() *OperatorRegistry {
	reg := NewOperatorRegistry()

	// bool
	RegisterBinary[bool, bool](reg, OperatorEq, func(a, b bool) (any, error) { return a == b, nil })
	RegisterBinary[bool, bool](reg, OperatorNe, func(a, b bool) (any, error) { return a != b, nil })
	RegisterUnary[bool](reg, OperatorNot, func(a bool) (any, error) { return !a, nil })

	// numbers, after Normalize
	registerComparison[int64](reg)
	registerComparison[float64](reg)
	registerMixed[int64, float64](reg, toFloat, sameFloat)
	registerMixed[float64, int64](reg, sameFloat, toFloat)

	registerComparison[string](reg)

	// time.Duration (interval)
	registerComparison[time.Duration](reg)

	// time.Time (timestamp)
	RegisterBinary[time.Time, time.Time](reg, OperatorEq, func(a, b time.Time) (any, error) { return a.Equal(b), nil })
	RegisterBinary[time.Time, time.Time](reg, OperatorNe, func(a, b time.Time) (any, error) { return !a.Equal(b), nil })
	RegisterBinary[time.Time, time.Time](reg, OperatorGt, func(a, b time.Time) (any, error) { return a.After(b), nil })
	RegisterBinary[time.Time, time.Time](reg, OperatorGte, func(a, b time.Time) (any, error) { return !a.Before(b), nil })
	RegisterBinary[time.Time, time.Time](reg, OperatorLt, func(a, b time.Time) (any, error) { return a.Before(b), nil })
	RegisterBinary[time.Time, time.Time](reg, OperatorLte, func(a, b time.Time) (any, error) { return !a.After(b), nil })

	return reg
}
