package sqlstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query/operators"
)

// PostgresDialect stores records in a jsonb column.
type PostgresDialect struct{}

func (PostgresDialect) Name() string {
	return "postgres"
}

func (PostgresDialect) CreateTable(table string) string {
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s BIGSERIAL PRIMARY KEY, %s JSONB NOT NULL DEFAULT '{}'::jsonb)",
		quoteIdent(table), idColumn, valueColumn,
	)
}

func (d PostgresDialect) CreateUniqueIndex(table, field string) string {
	path := strings.Split(field, ".")
	return fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s ((%s))",
		quoteIdent(table+"_"+strings.Join(path, "_")+"_key"), quoteIdent(table), d.jsonPathExpr(path),
	)
}

func (PostgresDialect) SelectValue() string {
	return valueColumn + "::text"
}

func (PostgresDialect) InsertValue() string {
	return "?::jsonb"
}

func (d PostgresDialect) jsonPathExpr(path []string) string {
	expr := valueColumn
	for _, key := range path {
		expr += fmt.Sprintf("->'%s'", key)
	}
	return expr
}

// fieldExpr maps JSON null to SQL NULL.
func (d PostgresDialect) fieldExpr(path []string) string {
	return fmt.Sprintf("NULLIF(%s, 'null'::jsonb)", d.jsonPathExpr(path))
}

func (d PostgresDialect) Compare(path []string, op operators.Operator, value any) (string, []any, error) {
	if err := validatePath(path); err != nil {
		return "", nil, err
	}
	expr := d.fieldExpr(path)

	switch op {
	case operators.OperatorIn, operators.OperatorNotIn:
		return d.compareIn(expr, op, value)
	case operators.OperatorEq, operators.OperatorNe:
		if value == nil {
			if op == operators.OperatorEq {
				return expr + " IS NULL", nil, nil
			}
			return expr + " IS NOT NULL", nil, nil
		}
		sqlOp, _ := sqlOperator(op)
		encoded, err := jsonText(value)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s %s ?::jsonb", expr, sqlOp), []any{encoded}, nil
	}

	sqlOp, err := sqlOperator(op)
	if err != nil {
		return "", nil, err
	}
	if value == nil {
		return "NULL", nil, nil
	}
	kind, err := jsonKind(value)
	if err != nil {
		return "", nil, err
	}
	encoded, err := jsonText(value)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("CASE WHEN jsonb_typeof(%s) = ? THEN %s %s ?::jsonb END", expr, expr, sqlOp),
		[]any{kind, encoded}, nil
}

func (d PostgresDialect) compareIn(expr string, op operators.Operator, value any) (string, []any, error) {
	values, ok := value.([]any)
	if !ok {
		return "", nil, fmt.Errorf("operator %s requires a list, got %T", op, value)
	}
	if len(values) == 0 {
		if op == operators.OperatorIn {
			return "FALSE", nil, nil
		}
		return "TRUE", nil, nil
	}
	markers := make([]string, len(values))
	var params []any
	for i, v := range values {
		if v == nil {
			markers[i] = "NULL"
			continue
		}
		encoded, err := jsonText(v)
		if err != nil {
			return "", nil, err
		}
		markers[i] = "?::jsonb"
		params = append(params, encoded)
	}
	return fmt.Sprintf("%s %s (%s)", expr, op, strings.Join(markers, ", ")), params, nil
}

func (d PostgresDialect) Merge(fields map[string]any) (string, []any, error) {
	encoded, err := jsonText(fields)
	if err != nil {
		return "", nil, err
	}
	return valueColumn + " || ?::jsonb", []any{encoded}, nil
}

func (d PostgresDialect) OrderBy(path []string, desc bool) string {
	if desc {
		return d.fieldExpr(path) + " DESC NULLS FIRST"
	}
	return d.fieldExpr(path) + " ASC NULLS LAST"
}

func (PostgresDialect) UnboundedLimit() string {
	return "ALL"
}

// IsConstraintViolation matches SQLSTATE class 23 (integrity constraint violation).
func (PostgresDialect) IsConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23")
}
