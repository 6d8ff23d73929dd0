package sqlstore

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/query/operators"
)

const (
	idColumn    = "id"
	valueColumn = "value"
	// PathSeparator joins nested field names in sort tokens.
	PathSeparator = "__"
)

// Dialect renders the engine-specific parts of the SQL issued by Store.
// Records live in a two-column table: id and a JSON value document.
// Statements use "?" markers; the session connection binds them for the driver.
type Dialect interface {
	Name() string
	CreateTable(table string) string
	CreateUniqueIndex(table, field string) string
	// SelectValue is the value column as JSON text.
	SelectValue() string
	// InsertValue is the placeholder expression for a JSON text parameter.
	InsertValue() string
	// Compare renders a comparison on a JSON field. Missing fields and JSON
	// nulls are SQL NULL; values of another JSON type never compare equal.
	Compare(path []string, op operators.Operator, value any) (string, []any, error)
	// Merge renders an expression replacing the top-level keys of fields in the value column.
	Merge(fields map[string]any) (string, []any, error)
	OrderBy(path []string, desc bool) string
	// UnboundedLimit is the LIMIT argument that returns every row.
	UnboundedLimit() string
	IsConstraintViolation(err error) bool
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func jsonText(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// jsonKind names the JSON type a Go filter value encodes to.
func jsonKind(value any) (string, error) {
	switch operators.Normalize(value).(type) {
	case int64, float64:
		return "number", nil
	case string:
		return "string", nil
	case bool:
		return "boolean", nil
	case []any:
		return "array", nil
	}
	return "", fmt.Errorf("unsupported filter value %v of type %T", value, value)
}

var segmentPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validatePath keeps field names safe to embed in JSON path literals.
func validatePath(path []string) error {
	for _, segment := range path {
		if !segmentPattern.MatchString(segment) {
			return fmt.Errorf("invalid field path %s", strings.Join(path, "."))
		}
	}
	return nil
}

func sqlOperator(op operators.Operator) (string, error) {
	switch op {
	case operators.OperatorEq:
		return "=", nil
	case operators.OperatorNe:
		return "<>", nil
	case operators.OperatorGt, operators.OperatorGte, operators.OperatorLt, operators.OperatorLte:
		return string(op), nil
	}
	return "", fmt.Errorf("operator %s has no SQL form", op)
}
