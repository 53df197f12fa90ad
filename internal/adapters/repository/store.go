// Package repository holds the user and item stores.
package repository

import (
	"context"

	"github.com/okian/paramapi/internal/domain/model"
)

// Store provides read/write access to users and items.
//
// Listing methods return entities in insertion order. Overwriting an existing
// user keeps its original position.
type Store interface {
	// GetUser returns the user stored under id, or ErrUserNotFound.
	GetUser(ctx context.Context, id int) (model.User, error)

	// PutUser stores u under u.ID, replacing any previous value. It reports
	// whether a previous value existed.
	PutUser(ctx context.Context, u model.User) (bool, error)

	// ReplaceUser stores u under id only if id already exists; otherwise it
	// returns ErrUserNotFound and leaves the store unchanged.
	ReplaceUser(ctx context.Context, id int, u model.User) error

	// ListUsers returns every user.
	ListUsers(ctx context.Context) ([]model.User, error)

	// CreateItem assigns the next item id (item count + 1) and stores it.
	CreateItem(ctx context.Context, item model.Item) (model.Item, error)

	// ListItems returns every item.
	ListItems(ctx context.Context) ([]model.Item, error)

	// Counts returns the number of users and items.
	Counts(ctx context.Context) (users, items int)
}
