package pgx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplaceParamMarkers(t *testing.T) {
	assert.Equal(t, "SELECT 1", replaceParamMarkers("SELECT 1"))
	assert.Equal(t,
		"UPDATE t SET value = value || $1::jsonb WHERE id = $2",
		replaceParamMarkers("UPDATE t SET value = value || ?::jsonb WHERE id = ?"),
	)
}
