package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesSchemaAndPersists(t *testing.T) {
	t.Parallel()
	dataDir := t.TempDir()

	database, err := Open(dataDir, "")
	require.NoError(t, err)

	_, err = database.SQL().Exec(
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		"user-1", "a@example.com", "hash", 1700000000)
	require.NoError(t, err)
	require.NoError(t, database.Close())

	// Reopening finds the row; the schema bootstrap is idempotent
	database, err = Open(dataDir, "")
	require.NoError(t, err)
	defer database.Close()

	var email string
	err = database.SQL().QueryRow(`SELECT email FROM users WHERE id = ?`, "user-1").Scan(&email)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", email)
}

func TestOpen_EncryptedRoundtrip(t *testing.T) {
	t.Parallel()
	dataDir := t.TempDir()
	key := strings.Repeat("ab", 32)

	database, err := Open(dataDir, key)
	require.NoError(t, err)

	_, err = database.SQL().Exec(
		`INSERT INTO notes (id, user_id, title, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		"n1", "user-1", "secret", "body", 1, 1)
	require.NoError(t, err)
	require.NoError(t, database.Close())

	// Same key reads the data back
	database, err = Open(dataDir, key)
	require.NoError(t, err)
	defer database.Close()

	var title string
	err = database.SQL().QueryRow(`SELECT title FROM notes WHERE id = ?`, "n1").Scan(&title)
	require.NoError(t, err)
	assert.Equal(t, "secret", title)
}

func TestOpen_RejectsMalformedKey(t *testing.T) {
	t.Parallel()

	for _, key := range []string{"short", strings.Repeat("g", 64), strings.Repeat("a", 63)} {
		_, err := Open(t.TempDir(), key)
		require.Error(t, err, "key %q should be rejected", key)
	}
}

func TestUniqueEmailConstraint(t *testing.T) {
	t.Parallel()

	database, err := Open(t.TempDir(), "")
	require.NoError(t, err)
	defer database.Close()

	_, err = database.SQL().Exec(
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		"user-1", "dup@example.com", "hash", 1)
	require.NoError(t, err)

	_, err = database.SQL().Exec(
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		"user-2", "dup@example.com", "hash", 2)
	assert.Error(t, err, "duplicate email should violate the unique index")
}
