package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresUsers_GetUserByUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresUsersRepository(db)

	mock.ExpectQuery(`SELECT id, username, password, role\s+FROM users`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password", "role"}).
			AddRow("u-1", "alice", "$2a$10$abc", "admin"))
	mock.ExpectQuery(`SELECT id, username, password, role\s+FROM users`).
		WithArgs("bob").
		WillReturnError(sql.ErrNoRows)

	u, err := repo.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, "admin", u.Role)

	_, err = repo.GetUserByUsername(context.Background(), "bob")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUsers_UpdatePasswordHash(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresUsersRepository(db)

	mock.ExpectExec(`UPDATE users SET password = \$1 WHERE id = \$2`).
		WithArgs("$2a$10$hash", "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET password`).
		WithArgs("h", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.UpdatePasswordHash(context.Background(), "u-1", "$2a$10$hash"))
	assert.ErrorIs(t, repo.UpdatePasswordHash(context.Background(), "missing", "h"), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
