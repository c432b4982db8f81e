package database

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewrite(t *testing.T) {
	stmt := "SELECT * FROM folder WHERE name LIKE %(n)s AND size > %(s)s AND id = %(n)s"
	args := map[string]any{"n": "%a%", "s": 3}

	t.Run("question", func(t *testing.T) {
		query, values, err := Rewrite(stmt, args, Question)
		require.NoError(t, err)
		assert.Equal(t, "SELECT * FROM folder WHERE name LIKE ? AND size > ? AND id = ?", query)
		assert.Equal(t, []any{"%a%", 3, "%a%"}, values)
	})

	t.Run("dollar", func(t *testing.T) {
		query, values, err := Rewrite(stmt, args, Dollar)
		require.NoError(t, err)
		assert.Equal(t, "SELECT * FROM folder WHERE name LIKE $1 AND size > $2 AND id = $3", query)
		assert.Equal(t, []any{"%a%", 3, "%a%"}, values)
	})

	t.Run("named", func(t *testing.T) {
		query, values, err := Rewrite(stmt, args, Named)
		require.NoError(t, err)
		assert.Equal(t, "SELECT * FROM folder WHERE name LIKE @n AND size > @s AND id = @n", query)
		assert.Equal(t, []any{map[string]any{"n": "%a%", "s": 3}}, values)
	})

	t.Run("dollar limit", func(t *testing.T) {
		limited := "SELECT * FROM folder WHERE size > %(s)s LIMIT %(limit_offset_x1)s, %(limit_count_x1)s"
		limitArgs := map[string]any{"s": 3, "limit_offset_x1": int64(20), "limit_count_x1": int64(10)}

		query, values, err := Rewrite(limited, limitArgs, Dollar)
		require.NoError(t, err)
		assert.Equal(t, "SELECT * FROM folder WHERE size > $1 LIMIT $2 OFFSET $3", query)
		assert.Equal(t, []any{3, int64(10), int64(20)}, values)

		query, values, err = Rewrite(limited, limitArgs, Question)
		require.NoError(t, err)
		assert.Equal(t, "SELECT * FROM folder WHERE size > ? LIMIT ?, ?", query)
		assert.Equal(t, []any{3, int64(20), int64(10)}, values)
	})

	t.Run("no args", func(t *testing.T) {
		query, values, err := Rewrite("SELECT * FROM folder", nil, Named)
		require.NoError(t, err)
		assert.Equal(t, "SELECT * FROM folder", query)
		assert.Nil(t, values)
	})

	t.Run("escaped percent", func(t *testing.T) {
		query, _, err := Rewrite("SELECT '100%%' FROM folder", nil, Question)
		require.NoError(t, err)
		assert.Equal(t, "SELECT '100%' FROM folder", query)
	})

	t.Run("missing arg", func(t *testing.T) {
		_, _, err := Rewrite("SELECT * FROM folder WHERE id = %(id)s", map[string]any{}, Question)
		assert.True(t, errors.Is(err, ErrMissingArg))
	})

	t.Run("unterminated", func(t *testing.T) {
		_, _, err := Rewrite("SELECT * FROM folder WHERE id = %(id", map[string]any{"id": 1}, Question)
		assert.Error(t, err)
	})
}

func TestStyleOf(t *testing.T) {
	assert.Equal(t, Question, StyleOf("mysql"))
	assert.Equal(t, Question, StyleOf("sqlite3"))
	assert.Equal(t, Dollar, StyleOf("pgx"))
	assert.Equal(t, Dollar, StyleOf("postgres"))
}
