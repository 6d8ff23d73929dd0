package config

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Engine string

const (
	EnginePostgres Engine = "postgres"
	EngineSQLite   Engine = "sqlite"
	EngineMongo    Engine = "mongodb"
	EngineMemory   Engine = "memory"
)

const DefaultEnvPrefix = "ASCETICDAO"

// Database tells the DAO how to reach its storage and where model
// declarations live. Engine selects which of the per-engine blocks applies.
type Database struct {
	Engine         Engine   `mapstructure:"engine" yaml:"engine"`
	ConnectionURI  string   `mapstructure:"connection_uri" yaml:"connection_uri"`
	DatabaseName   string   `mapstructure:"database_name" yaml:"database_name"`
	ModelLocations []string `mapstructure:"model_locations" yaml:"model_locations"`

	Postgres Postgres `mapstructure:"postgres" yaml:"postgres"`
	SQLite   SQLite   `mapstructure:"sqlite" yaml:"sqlite"`
	Mongo    Mongo    `mapstructure:"mongo" yaml:"mongo"`
}

type Postgres struct {
	// ReplicaURI receives reads; empty means reads share the primary pool.
	ReplicaURI string `mapstructure:"replica_uri" yaml:"replica_uri"`
	MaxConns   int32  `mapstructure:"max_conns" yaml:"max_conns"`
}

type SQLite struct {
	ReplicaURI    string `mapstructure:"replica_uri" yaml:"replica_uri"`
	BusyTimeoutMs int    `mapstructure:"busy_timeout_ms" yaml:"busy_timeout_ms"`
}

type Mongo struct {
	ConnectTimeoutSec int `mapstructure:"connect_timeout_sec" yaml:"connect_timeout_sec"`
	// ReplicaReadPreference is the read preference of the replica handle.
	ReplicaReadPreference string `mapstructure:"replica_read_preference" yaml:"replica_read_preference"`
}

var keys = []string{
	"engine",
	"connection_uri",
	"database_name",
	"model_locations",
	"postgres.replica_uri",
	"postgres.max_conns",
	"sqlite.replica_uri",
	"sqlite.busy_timeout_ms",
	"mongo.connect_timeout_sec",
	"mongo.replica_read_preference",
}

var readPreferences = map[string]struct{}{
	"primary": {}, "primaryPreferred": {}, "secondary": {}, "secondaryPreferred": {}, "nearest": {},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine", string(EngineMemory))
	v.SetDefault("database_name", "default")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("sqlite.busy_timeout_ms", 5000)
	v.SetDefault("mongo.connect_timeout_sec", 10)
	v.SetDefault("mongo.replica_read_preference", "secondaryPreferred")
}

// Load reads an optional YAML file and then PREFIX_* environment variables,
// e.g. ASCETICDAO_CONNECTION_URI or ASCETICDAO_POSTGRES_REPLICA_URI.
// MODEL_LOCATIONS is comma separated.
func Load(path, prefix string) (Database, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Database{}, errors.Wrapf(err, "failed to read config %s", path)
		}
	}

	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	v.SetEnvPrefix(strings.TrimSuffix(prefix, "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return Database{}, errors.Wrapf(err, "failed to bind %s", key)
		}
	}

	var cfg Database
	if err := v.Unmarshal(&cfg); err != nil {
		return Database{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Database{}, err
	}
	return cfg, nil
}

func (c Database) Validate() error {
	switch c.Engine {
	case EnginePostgres, EngineSQLite, EngineMongo:
		if c.ConnectionURI == "" {
			return fmt.Errorf("connection_uri is required for engine %s", c.Engine)
		}
	case EngineMemory:
	default:
		return fmt.Errorf("unsupported engine %q", c.Engine)
	}
	if c.DatabaseName == "" {
		return fmt.Errorf("database_name is required")
	}
	if c.Engine == EngineMongo && c.Mongo.ReplicaReadPreference != "" {
		if _, ok := readPreferences[c.Mongo.ReplicaReadPreference]; !ok {
			return fmt.Errorf("invalid mongo replica_read_preference %q", c.Mongo.ReplicaReadPreference)
		}
	}
	if c.Postgres.MaxConns < 0 {
		return fmt.Errorf("postgres max_conns must not be negative")
	}
	return nil
}
