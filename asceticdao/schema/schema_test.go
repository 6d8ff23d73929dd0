package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableName(t *testing.T) {
	cases := map[string]string{
		"User":       "users",
		"BlogPost":   "blog_posts",
		"Person":     "people",
		"Category":   "categories",
		"HTTPHeader": "http_headers",
		"user_event": "user_events",
	}
	for model, table := range cases {
		assert.Equal(t, table, TableName(model), model)
	}
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(Model{Name: "User", Unique: []string{"email"}})
	require.NoError(t, err)

	m, ok := r.Lookup("User")
	require.True(t, ok)
	assert.Equal(t, "users", m.Table)
	assert.Equal(t, []string{"email"}, m.Unique)

	_, ok = r.Lookup("Missing")
	assert.False(t, ok)

	assert.EqualError(t, r.Register(Model{Name: "User"}), "model User is already registered")
	assert.EqualError(t, r.Register(Model{Name: "drop table"}), "invalid model name: drop table")
	assert.EqualError(t, r.Register(Model{Name: "Post", Table: "posts;"}), "invalid table name posts; for model Post")
	assert.EqualError(t, r.Register(Model{Name: "Post", Unique: []string{"a-b"}}), "invalid unique field a-b for model Post")
}

func TestLoadLocations(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(`
models:
  - name: User
    unique: [email]
  - name: Company
    table: companies
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte(`
models:
  - name: Employee
`), 0o600))
	extra := filepath.Join(t.TempDir(), "extra.yaml")
	require.NoError(t, os.WriteFile(extra, []byte("models:\n  - name: Audit\n"), 0o600))

	r, err := LoadLocations([]string{dir, extra})
	require.NoError(t, err)

	names := []string{}
	for _, m := range r.Models() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"Audit", "Company", "Employee", "User"}, names)

	_, err = LoadLocations([]string{filepath.Join(dir, "missing.yaml")})
	assert.Error(t, err)
}
