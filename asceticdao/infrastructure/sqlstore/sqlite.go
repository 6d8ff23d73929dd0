package sqlstore

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"modernc.org/sqlite"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query/operators"
)

const sqliteConstraint = 19

// SQLiteDialect stores records as JSON text and queries them with the JSON1 functions.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string {
	return "sqlite"
}

func (SQLiteDialect) CreateTable(table string) string {
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s INTEGER PRIMARY KEY AUTOINCREMENT, %s TEXT NOT NULL DEFAULT '{}')",
		quoteIdent(table), idColumn, valueColumn,
	)
}

func (d SQLiteDialect) CreateUniqueIndex(table, field string) string {
	path := strings.Split(field, ".")
	return fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)",
		quoteIdent(table+"_"+strings.Join(path, "_")+"_key"), quoteIdent(table), d.extract(path),
	)
}

func (SQLiteDialect) SelectValue() string {
	return valueColumn
}

func (SQLiteDialect) InsertValue() string {
	return "json(?)"
}

func jsonPath(path []string) string {
	return "'$." + strings.Join(path, ".") + "'"
}

func (SQLiteDialect) extract(path []string) string {
	return fmt.Sprintf("json_extract(%s, %s)", valueColumn, jsonPath(path))
}

func (SQLiteDialect) jsonType(path []string) string {
	return fmt.Sprintf("json_type(%s, %s)", valueColumn, jsonPath(path))
}

var sqliteTypes = map[string]string{
	"number":  "('integer', 'real')",
	"string":  "('text')",
	"boolean": "('true', 'false')",
	"array":   "('array')",
}

func (d SQLiteDialect) Compare(path []string, op operators.Operator, value any) (string, []any, error) {
	if err := validatePath(path); err != nil {
		return "", nil, err
	}
	switch op {
	case operators.OperatorIn, operators.OperatorNotIn:
		return d.compareIn(path, op, value)
	case operators.OperatorEq:
		return d.equal(path, value)
	case operators.OperatorNe:
		sql, params, err := d.equal(path, value)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", params, nil
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
	return fmt.Sprintf("CASE WHEN %s IN %s THEN %s %s ? END", d.jsonType(path), sqliteTypes[kind], d.extract(path), sqlOp),
		[]any{sqliteParam(value)}, nil
}

// equal is NULL for a missing or null field and false for a value of another JSON type.
func (d SQLiteDialect) equal(path []string, value any) (string, []any, error) {
	x := d.extract(path)
	if value == nil {
		return x + " IS NULL", nil, nil
	}
	kind, err := jsonKind(value)
	if err != nil {
		return "", nil, err
	}
	if kind == "array" {
		encoded, err := jsonText(value)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("CASE WHEN %s IS NULL THEN NULL WHEN %s = 'array' THEN json(%s) = json(?) ELSE 0 END", x, d.jsonType(path), x),
			[]any{encoded}, nil
	}
	return fmt.Sprintf("CASE WHEN %s IS NULL THEN NULL WHEN %s IN %s THEN %s = ? ELSE 0 END", x, d.jsonType(path), sqliteTypes[kind], x),
		[]any{sqliteParam(value)}, nil
}

func (d SQLiteDialect) compareIn(path []string, op operators.Operator, value any) (string, []any, error) {
	values, ok := value.([]any)
	if !ok {
		return "", nil, fmt.Errorf("operator %s requires a list, got %T", op, value)
	}
	if len(values) == 0 {
		if op == operators.OperatorIn {
			return "0", nil, nil
		}
		return "1", nil, nil
	}
	parts := make([]string, len(values))
	var params []any
	for i, v := range values {
		if v == nil {
			parts[i] = "NULL"
			continue
		}
		sql, p, err := d.equal(path, v)
		if err != nil {
			return "", nil, err
		}
		parts[i] = sql
		params = append(params, p...)
	}
	sql := "(" + strings.Join(parts, " OR ") + ")"
	if op == operators.OperatorNotIn {
		sql = "NOT " + sql
	}
	return sql, params, nil
}

func (d SQLiteDialect) Merge(fields map[string]any) (string, []any, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("json_set(" + valueColumn)
	params := make([]any, 0, len(keys))
	for _, k := range keys {
		if err := validatePath([]string{k}); err != nil {
			return "", nil, err
		}
		encoded, err := jsonText(fields[k])
		if err != nil {
			return "", nil, err
		}
		b.WriteString(fmt.Sprintf(", %s, json(?)", jsonPath([]string{k})))
		params = append(params, encoded)
	}
	b.WriteString(")")
	return b.String(), params, nil
}

func (d SQLiteDialect) OrderBy(path []string, desc bool) string {
	if desc {
		return d.extract(path) + " DESC NULLS FIRST"
	}
	return d.extract(path) + " ASC NULLS LAST"
}

func (SQLiteDialect) UnboundedLimit() string {
	return "-1"
}

func (SQLiteDialect) IsConstraintViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqliteConstraint
}

// sqliteParam binds numbers as int64 or float64 so json.Number compares numerically.
func sqliteParam(value any) any {
	return operators.Normalize(value)
}
