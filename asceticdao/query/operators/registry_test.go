package operators

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type money struct {
	amount   int
	currency string
}

func TestExecBinary(t *testing.T) {
	reg := NewDefaultRegistry()

	cases := []struct {
		name     string
		left     any
		op       Operator
		right    any
		expected any
	}{
		{"int kinds normalize", int32(3), OperatorEq, int64(3), true},
		{"json number against int", json.Number("30"), OperatorGte, 30, true},
		{"json float against int", json.Number("29.5"), OperatorLt, 30, true},
		{"int against float", 2, OperatorLt, 2.5, true},
		{"float against int", 3.0, OperatorEq, 3, true},
		{"uint", uint8(7), OperatorGt, int64(6), true},
		{"strings", "alice", OperatorLt, "bob", true},
		{"bool ne", true, OperatorNe, false, true},
		{"duration", time.Second, OperatorGt, time.Millisecond, true},
		{"time", time.Unix(10, 0), OperatorLte, time.Unix(10, 0), true},
		{"null left", nil, OperatorEq, 1, nil},
		{"null right", 1, OperatorNe, nil, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			result, err := reg.ExecBinary(c.left, c.op, c.right)
			require.NoError(t, err)
			assert.Equal(t, c.expected, result)
		})
	}
}

func TestExecBinary_Unsupported(t *testing.T) {
	reg := NewDefaultRegistry()

	_, err := reg.ExecBinary("1", OperatorEq, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `operator "=" is not supported for string and int64`)
	assert.ErrorIs(t, err, ErrUnsupportedOperands)
}

func TestExecIn(t *testing.T) {
	reg := NewDefaultRegistry()

	t.Run("match", func(t *testing.T) {
		result, err := reg.ExecIn(2, []any{1, json.Number("2")})
		require.NoError(t, err)
		assert.Equal(t, true, result)
	})

	t.Run("no match", func(t *testing.T) {
		result, err := reg.ExecIn(5, []any{1, 2})
		require.NoError(t, err)
		assert.Equal(t, false, result)
	})

	t.Run("no match with null in list", func(t *testing.T) {
		result, err := reg.ExecIn(5, []any{1, nil})
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("empty list", func(t *testing.T) {
		result, err := reg.ExecIn(nil, []any{})
		require.NoError(t, err)
		assert.Equal(t, false, result)
	})

	t.Run("mixed types", func(t *testing.T) {
		result, err := reg.ExecIn("b", []any{1, "b"})
		require.NoError(t, err)
		assert.Equal(t, true, result)
	})

	t.Run("not in", func(t *testing.T) {
		result, err := reg.ExecBinary("c", OperatorNotIn, []any{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, true, result)
	})

	t.Run("via ExecBinary", func(t *testing.T) {
		result, err := reg.ExecBinary("b", OperatorIn, []any{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, true, result)
	})
}

func TestThreeValuedLogic(t *testing.T) {
	reg := NewDefaultRegistry()

	cases := []struct {
		left, right any
		op          Operator
		expected    any
	}{
		{nil, false, OperatorAnd, false},
		{nil, true, OperatorAnd, nil},
		{true, true, OperatorAnd, true},
		{nil, true, OperatorOr, true},
		{false, nil, OperatorOr, nil},
		{false, false, OperatorOr, false},
	}
	for _, c := range cases {
		result, err := reg.ExecBinary(c.left, c.op, c.right)
		require.NoError(t, err)
		assert.Equal(t, c.expected, result, "%v %s %v", c.left, c.op, c.right)
	}
}

func TestExecUnary(t *testing.T) {
	reg := NewDefaultRegistry()

	result, err := reg.ExecUnary(OperatorIsNull, nil)
	require.NoError(t, err)
	assert.Equal(t, true, result)

	result, err = reg.ExecUnary(OperatorIsNotNull, nil)
	require.NoError(t, err)
	assert.Equal(t, false, result)

	result, err = reg.ExecUnary(OperatorNot, nil)
	require.NoError(t, err)
	assert.Nil(t, result)

	result, err = reg.ExecUnary(OperatorNot, true)
	require.NoError(t, err)
	assert.Equal(t, false, result)
}

func TestUnregisteredTypesAreRejected(t *testing.T) {
	reg := NewDefaultRegistry()

	for _, op := range []Operator{OperatorEq, OperatorNe, OperatorGt, OperatorLte} {
		_, err := reg.ExecBinary(money{100, "USD"}, op, money{100, "USD"})
		assert.ErrorIs(t, err, ErrUnsupportedOperands, op)
	}
}

func TestNegated(t *testing.T) {
	op, ok := OperatorGt.Negated()
	assert.True(t, ok)
	assert.Equal(t, OperatorLte, op)

	op, ok = OperatorIn.Negated()
	assert.True(t, ok)
	assert.Equal(t, OperatorNotIn, op)

	_, ok = OperatorNot.Negated()
	assert.False(t, ok)
}
