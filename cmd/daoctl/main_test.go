package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/krew-solutions/ascetic-dao-go/asceticdao/config"
	"github.com/krew-solutions/ascetic-dao-go/asceticdao/dao"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "version "+version)
}

func TestFilterValidate(t *testing.T) {
	out, err := execute(t, "filter", "validate", `{"age": {"$gte": 30}, "name": "John"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"age": {"$gte": 30}, "name": "John"}`, out)

	_, err = execute(t, "filter", "validate", `{"age": {"$in": 30}}`)
	assert.EqualError(t, err, "value for $in should be of type list")

	_, err = execute(t, "filter", "validate", `[1]`)
	assert.Error(t, err)
}

func TestFilterCompile(t *testing.T) {
	t.Run("tree", func(t *testing.T) {
		out, err := execute(t, "filter", "compile", `{"age": ">=30"}`)
		require.NoError(t, err)
		want, err := execute(t, "filter", "compile", `{"age": {"$gte": 30}}`)
		require.NoError(t, err)
		assert.Equal(t, want, out)
	})

	t.Run("sqlite", func(t *testing.T) {
		out, err := execute(t, "filter", "compile", "--engine", "sqlite", `{"id": {"$gt": 3}}`)
		require.NoError(t, err)
		var compiled struct {
			Where  string `json:"where"`
			Params []any  `json:"params"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &compiled))
		assert.Equal(t, "id > ?", compiled.Where)
		assert.Equal(t, []any{float64(3)}, compiled.Params)
	})

	t.Run("mongodb yaml", func(t *testing.T) {
		out, err := execute(t, "filter", "compile", "--engine", "mongodb", "-o", "yaml", `{"id": {"$gt": 3}}`)
		require.NoError(t, err)
		var compiled map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(out), &compiled))
		require.Contains(t, compiled, "$and")
		assert.Contains(t, out, "_id:")
		assert.Contains(t, out, "$gt: 3")
	})

	t.Run("unknown engine", func(t *testing.T) {
		_, err := execute(t, "filter", "compile", "--engine", "redis", `{}`)
		assert.EqualError(t, err, `unsupported engine "redis"`)
	})
}

func TestSortNormalize(t *testing.T) {
	for _, spec := range []string{"employer.name,-age", `{"employer.name": 1, "age": -1}`, `[["employer.name", 1], ["age", -1]]`} {
		out, err := execute(t, "sort", "normalize", spec)
		require.NoError(t, err, spec)
		assert.JSONEq(t, `["employer__name", "-age"]`, out, spec)
	}

	_, err := execute(t, "sort", "normalize", `{"age": 2}`)
	assert.EqualError(t, err, "invalid sort value: 2 for field age, allowed values are -1 and 1")
}

func TestDataCommands(t *testing.T) {
	dir := t.TempDir()
	models := filepath.Join(dir, "models.yaml")
	require.NoError(t, os.WriteFile(models, []byte("models:\n  - name: Person\n    unique: [email]\n"), 0o600))
	cfg := config.Database{
		Engine:         config.EngineSQLite,
		ConnectionURI:  filepath.Join(dir, "people.db"),
		DatabaseName:   "default",
		ModelLocations: []string{models},
	}
	configPath := filepath.Join(dir, "daoctl.yaml")
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(configPath, data, 0o600))

	ctx := context.Background()
	d, err := dao.New(cfg)
	require.NoError(t, err)
	require.NoError(t, d.Init(ctx))
	records := make([]dao.Record, 5)
	for i := range records {
		records[i] = dao.Record{"email": fmt.Sprintf("p%d@example.com", i+1), "age": i + 1}
	}
	require.NoError(t, d.BulkCreate(ctx, "Person", records))
	require.NoError(t, d.Close(ctx))

	out, err := execute(t, "--config", configPath, "count", "Person", "--filter", `{"age": {"$gte": 2}}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"count": 4}`, out)

	out, err = execute(t, "--config", configPath, "get-many", "Person", "--sort", "-age", "--page", "2", "--page-size", "2")
	require.NoError(t, err)
	var page []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Len(t, page, 2)
	assert.Equal(t, float64(3), page[0]["age"])
	assert.Equal(t, float64(2), page[1]["age"])

	_, err = execute(t, "--config", configPath, "count", "bad-name")
	assert.ErrorIs(t, err, dao.ErrInvalidQuery)
}
