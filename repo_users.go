package auth

import (
	"context"
	"database/sql"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the store behind the identity provider
type Users interface {
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
	Register(ctx context.Context, user *User) (*User, error)
	TrackAttemptedLogin(ctx context.Context, user *User) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error
}

type users struct {
	db *bun.DB
}

var _ Users = (*users)(nil)

// NewUsersRepository creates a bun backed Users store
func NewUsersRepository(db *bun.DB) Users {
	return &users{db: db}
}

// GetByIdentifier resolves a user by id, email, or username in that order
func (a *users) GetByIdentifier(ctx context.Context, identifier string) (*User, error) {
	options := resolveUserIdentifier(identifier)
	if len(options) == 0 {
		return nil, ErrIdentityNotFound.Clone()
	}

	for _, opt := range options {
		record := &User{}
		err := a.db.NewSelect().
			Model(record).
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to query user")
		}

		return record, nil
	}

	return nil, ErrIdentityNotFound.Clone().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

// Register inserts a new user, rejecting identifiers already in use
func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	prepareUserDefaults(user)

	exists, err := a.db.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.username = ? OR ?TableAlias.email = ?", user.Username, user.Email).
		Exists(ctx)

	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to check user existence")
	}

	if exists {
		return nil, ErrIdentityExists.Clone().
			WithMetadata(map[string]any{
				"username": user.Username,
			})
	}

	if _, err := a.db.NewInsert().Model(user).Exec(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to register user")
	}

	return user, nil
}

// TrackAttemptedLogin increments the attempt counter and window start
func (a *users) TrackAttemptedLogin(ctx context.Context, user *User) error {
	now := time.Now()
	_, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("login_attempts = ?", user.LoginAttempts+1).
		Set("login_attempt_at = ?", now).
		Where("?TableAlias.id = ?", user.ID).
		Where("?TableAlias.deleted_at IS NULL").
		Exec(ctx)

	return err
}

// TrackSuccessfulLogin resets the attempt counter and records the login
func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	loggedInAt := time.Now()
	_, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("loggedin_at = ?", loggedInAt).
		Set("login_attempt_at = NULL").
		Set("login_attempts = 0").
		Where("?TableAlias.id = ?", user.ID).
		Where("?TableAlias.deleted_at IS NULL").
		Exec(ctx)

	return err
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleUser
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

type identifierOption struct {
	column string
	value  string
}

func resolveUserIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 3)

	if isUUID(trimmed) {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  trimmed,
		})
	}

	options = append(options, identifierOption{
		column: "username",
		value:  trimmed,
	})

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}
