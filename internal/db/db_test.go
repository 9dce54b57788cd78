package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAt(t *testing.T, path string) *DB {
	t.Helper()
	d, err := New(path, nil)
	require.NoError(t, err)
	return d
}

func TestNew_SchemaAndPragmas(t *testing.T) {
	d := openAt(t, filepath.Join(t.TempDir(), "nested", "dir", "slicer.db"))
	defer d.Close()

	for _, table := range []string{"exports", "config", "_migrations"} {
		var name string
		err := d.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}

	var mode string
	require.NoError(t, d.Conn().QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, d.Conn().QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestApplied_ReopenDoesNotReapply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slicer.db")

	first := openAt(t, path)
	want, err := first.Applied(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"001_init.sql", "002_exports.sql"}, want)
	require.NoError(t, first.Close())

	second := openAt(t, path)
	defer second.Close()
	got, err := second.Applied(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNew_FailsInterruptedExports(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slicer.db")

	first := openAt(t, path)
	_, err := first.Conn().Exec(`
		INSERT INTO exports (id, status, source_name, container, slice_count, created_at, updated_at)
		VALUES ('e-pending', 'pending', 'a.mp4', 'mp4', 1, datetime('now'), datetime('now')),
		       ('e-running', 'running', 'a.mp4', 'mp4', 3, datetime('now'), datetime('now')),
		       ('e-done', 'completed', 'b.mp4', 'mp4', 1, datetime('now'), datetime('now'))`)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := openAt(t, path)
	defer second.Close()

	cases := map[string]string{
		"e-pending": "failed",
		"e-running": "failed",
		"e-done":    "completed",
	}
	for id, want := range cases {
		var status string
		require.NoError(t, second.Conn().QueryRow("SELECT status FROM exports WHERE id = ?", id).Scan(&status))
		assert.Equal(t, want, status, id)
	}

	var reason string
	require.NoError(t, second.Conn().QueryRow("SELECT error FROM exports WHERE id = 'e-running'").Scan(&reason))
	assert.Equal(t, "interrupted by restart", reason)
}
