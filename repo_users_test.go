package auth_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	auth "github.com/goliatone/go-authgate"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const sqliteCreateUsers = `CREATE TABLE users (
    id TEXT NOT NULL PRIMARY KEY,
    user_role TEXT NOT NULL,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT,
    login_attempts INTEGER DEFAULT 0,
    login_attempt_at TIMESTAMP NULL,
    loggedin_at TIMESTAMP NULL,
    metadata TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    deleted_at TIMESTAMP NULL
);`

func setupUsersRepo(t *testing.T) (auth.Users, *bun.DB, func()) {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec(sqliteCreateUsers)
	require.NoError(t, err)

	cleanup := func() {
		_ = bunDB.Close()
		_ = db.Close()
	}

	return auth.NewUsersRepository(bunDB), bunDB, cleanup
}

func registerTestUser(t *testing.T, repo auth.Users, username, email string) *auth.User {
	t.Helper()

	user, err := repo.Register(context.Background(), &auth.User{
		Username:     username,
		Email:        email,
		PasswordHash: "not-a-real-hash",
	})
	require.NoError(t, err)
	return user
}

func TestUsersRepository_Register(t *testing.T) {
	t.Run("assigns defaults on insert", func(t *testing.T) {
		repo, _, cleanup := setupUsersRepo(t)
		defer cleanup()

		user := registerTestUser(t, repo, "tester", "tester@example.com")

		assert.NotEqual(t, uuid.Nil, user.ID)
		assert.Equal(t, auth.RoleUser, user.Role)
	})

	t.Run("rejects duplicate username", func(t *testing.T) {
		repo, _, cleanup := setupUsersRepo(t)
		defer cleanup()

		registerTestUser(t, repo, "tester", "tester@example.com")

		_, err := repo.Register(context.Background(), &auth.User{
			Username: "tester",
			Email:    "other@example.com",
		})

		assert.Error(t, err)
		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, auth.TextCodeIdentityExists, richErr.TextCode)
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		repo, _, cleanup := setupUsersRepo(t)
		defer cleanup()

		registerTestUser(t, repo, "tester", "tester@example.com")

		_, err := repo.Register(context.Background(), &auth.User{
			Username: "other",
			Email:    "tester@example.com",
		})
		assert.Error(t, err)
	})
}

func TestUsersRepository_GetByIdentifier(t *testing.T) {
	repo, _, cleanup := setupUsersRepo(t)
	defer cleanup()

	user := registerTestUser(t, repo, "tester", "tester@example.com")

	t.Run("finds by id", func(t *testing.T) {
		found, err := repo.GetByIdentifier(context.Background(), user.ID.String())
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("finds by email", func(t *testing.T) {
		found, err := repo.GetByIdentifier(context.Background(), "tester@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("finds by username", func(t *testing.T) {
		found, err := repo.GetByIdentifier(context.Background(), "tester")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("unknown identifier is not found", func(t *testing.T) {
		_, err := repo.GetByIdentifier(context.Background(), "nobody")
		assert.Error(t, err)
		assert.True(t, goerrors.IsNotFound(err))
	})

	t.Run("blank identifier is not found", func(t *testing.T) {
		_, err := repo.GetByIdentifier(context.Background(), "   ")
		assert.Error(t, err)
		assert.True(t, goerrors.IsNotFound(err))
	})
}

func TestUsersRepository_LoginTracking(t *testing.T) {
	repo, _, cleanup := setupUsersRepo(t)
	defer cleanup()

	user := registerTestUser(t, repo, "tester", "tester@example.com")

	t.Run("attempted login increments the counter", func(t *testing.T) {
		require.NoError(t, repo.TrackAttemptedLogin(context.Background(), user))

		found, err := repo.GetByIdentifier(context.Background(), "tester")
		require.NoError(t, err)
		assert.Equal(t, 1, found.LoginAttempts)
		assert.NotNil(t, found.LoginAttemptAt)
	})

	t.Run("successful login resets the window", func(t *testing.T) {
		require.NoError(t, repo.TrackSuccessfulLogin(context.Background(), user))

		found, err := repo.GetByIdentifier(context.Background(), "tester")
		require.NoError(t, err)
		assert.Equal(t, 0, found.LoginAttempts)
		assert.Nil(t, found.LoginAttemptAt)
		require.NotNil(t, found.LoggedInAt)
		assert.WithinDuration(t, time.Now(), *found.LoggedInAt, time.Minute)
	})
}
