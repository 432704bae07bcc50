package repository

import (
	"context"

	"apphost/internal/domain/model"
)

// UserRepository persists users. Lookups that find nothing return
// model.ErrNotFound.
type UserRepository interface {
	Get(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)

	// Save inserts or replaces the user and its lookup indexes.
	Save(ctx context.Context, user *model.User) error

	// Update loads the user, applies fn and saves the result atomically.
	Update(ctx context.Context, id string, fn func(user *model.User) error) error

	// UpdateAll applies fn to every user in one transaction. Users for
	// which fn reports false are left untouched.
	UpdateAll(ctx context.Context, fn func(user *model.User) bool) error

	Delete(ctx context.Context, id string) error
}
