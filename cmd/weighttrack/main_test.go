package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weighttrack/internal/adapter/sqlstore"
	"weighttrack/internal/logger"
)

const importCSV = "date,weight,notes\n" +
	"2026-01-01,70.5,\n" +
	"not-a-date,71,\n" +
	"2026-01-02,71,\"after run, tired\"\n"

// seedUser creates a SQLite database holding one account.
func seedUser(t *testing.T, email string) string {
	t.Helper()
	dsn := "sqlite:" + filepath.Join(t.TempDir(), "weights.db")
	db, err := sqlstore.Open(context.Background(), dsn, logger.Nop())
	require.NoError(t, err)
	_, err = sqlstore.NewUserRepo(db).Create(context.Background(), email, "x")
	require.NoError(t, err)
	require.NoError(t, db.Close())
	return dsn
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	root, err := rootCommand()
	require.NoError(t, err)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--env-file", ""}, args...))
	err = root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestImportThenExport(t *testing.T) {
	dsn := seedUser(t, "ann@example.com")
	in := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(in, []byte(importCSV), 0o600))

	out, _, err := run(t, "--database-url", dsn, "import", "--user", "Ann@Example.com", "--in", in)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2, skipped 1")
	assert.Contains(t, out, "line 3:")

	out, _, err = run(t, "--database-url", dsn, "export", "--user", "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, "date,weight,notes\n2026-01-01,70.5,\n2026-01-02,71,\"after run, tired\"\n", out)
}

func TestImportNothingValid(t *testing.T) {
	dsn := seedUser(t, "ann@example.com")
	in := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(in, []byte("date,weight\nbroken\n"), 0o600))

	_, stderr, err := run(t, "--database-url", dsn, "import", "--user", "ann@example.com", "--in", in)
	require.Error(t, err)
	assert.Contains(t, stderr, "imported 0, skipped 1")
}

func TestUnknownUser(t *testing.T) {
	dsn := seedUser(t, "ann@example.com")
	_, _, err := run(t, "--database-url", dsn, "export", "--user", "bob@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no account for bob@example.com")
}

func TestBackupToFile(t *testing.T) {
	dsn := seedUser(t, "ann@example.com")
	out := filepath.Join(t.TempDir(), "backup.db")

	_, _, err := run(t, "--database-url", dsn, "backup", "--out", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("SQLite format 3\x00")))
}

func TestMissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, _, err := run(t, "backup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
}
