package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", "ASCETICDAO_TEST_DEFAULTS")
	require.NoError(t, err)

	assert.Equal(t, EngineMemory, cfg.Engine)
	assert.Equal(t, "default", cfg.DatabaseName)
	assert.Equal(t, int32(10), cfg.Postgres.MaxConns)
	assert.Equal(t, 5000, cfg.SQLite.BusyTimeoutMs)
	assert.Equal(t, "secondaryPreferred", cfg.Mongo.ReplicaReadPreference)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dao.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine: postgres
connection_uri: postgres://file/db
database_name: app
model_locations:
  - models/a.yaml
postgres:
  max_conns: 4
`), 0o600))

	t.Setenv("ASCETICDAO_CONNECTION_URI", "postgres://env/db")
	t.Setenv("ASCETICDAO_POSTGRES_REPLICA_URI", "postgres://replica/db")
	t.Setenv("ASCETICDAO_MODEL_LOCATIONS", "models/a.yaml,models/b.yaml")

	cfg, err := Load(path, "ASCETICDAO_")
	require.NoError(t, err)

	assert.Equal(t, EnginePostgres, cfg.Engine)
	assert.Equal(t, "postgres://env/db", cfg.ConnectionURI)
	assert.Equal(t, "app", cfg.DatabaseName)
	assert.Equal(t, []string{"models/a.yaml", "models/b.yaml"}, cfg.ModelLocations)
	assert.Equal(t, "postgres://replica/db", cfg.Postgres.ReplicaURI)
	assert.Equal(t, int32(4), cfg.Postgres.MaxConns)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Database
		message string
	}{
		{"unknown engine", Database{Engine: "oracle", DatabaseName: "x"}, `unsupported engine "oracle"`},
		{"missing uri", Database{Engine: EngineSQLite, DatabaseName: "x"}, "connection_uri is required for engine sqlite"},
		{"missing name", Database{Engine: EngineMemory}, "database_name is required"},
		{"read preference", Database{Engine: EngineMongo, ConnectionURI: "mongodb://h", DatabaseName: "x", Mongo: Mongo{ReplicaReadPreference: "any"}}, `invalid mongo replica_read_preference "any"`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.EqualError(t, c.cfg.Validate(), c.message)
		})
	}

	assert.NoError(t, Database{Engine: EngineMemory, DatabaseName: "x"}.Validate())
}
