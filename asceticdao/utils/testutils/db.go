package testutils

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	pgsession "github.com/krew-solutions/ascetic-dao-go/asceticdao/session/pgx"
	sqlxsession "github.com/krew-solutions/ascetic-dao-go/asceticdao/session/sqlx"
)

// PostgresURI builds a connection string from DB_* variables.
// ok is false when DB_HOST is unset and integration tests should skip.
func PostgresURI() (uri string, ok bool) {
	if _, ok = os.LookupEnv("DB_HOST"); !ok {
		return "", false
	}
	var db_username string = getEnv("DB_USERNAME", "devel")
	var db_password string = getEnv("DB_PASSWORD", "devel")
	var db_host string = getEnv("DB_HOST", "localhost")
	var db_port string = getEnv("DB_PORT", "5432")
	var db_basename string = getEnv("DB_DATABASE", "devel_dao")

	return "postgres://" + db_username + ":" + db_password + "@" + db_host + ":" + db_port + "/" + db_basename, true
}

func NewPgSessionPool(t *testing.T) *pgsession.SessionPool {
	t.Helper()
	uri, ok := PostgresURI()
	if !ok {
		t.Skip("DB_HOST is not set")
	}
	pool, err := pgsession.Open(context.Background(), uri, 0)
	if err != nil {
		t.Fatalf("postgres: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

// MongoURI returns MONGO_URI; ok is false when it is unset.
func MongoURI() (string, bool) {
	return os.LookupEnv("MONGO_URI")
}

// SQLitePath is a fresh database file removed with the test.
func SQLitePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "dao.db")
}

func NewSQLiteSessionPool(t *testing.T) *sqlxsession.SessionPool {
	t.Helper()
	pool, err := sqlxsession.Open(context.Background(), "sqlite", SQLitePath(t)+"?_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	pool.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}
