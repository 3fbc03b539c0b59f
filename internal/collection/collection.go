// Package collection persists the items a user has added by scanning.
package collection

import (
	"context"
	"errors"
	"strings"
	"time"

	"bookscan/internal/entity"
)

var (
	// ErrUnauthenticated is returned for calls made without a user.
	ErrUnauthenticated = errors.New("no authenticated user")
	// ErrAlreadyOwned is returned by Add when the user already has the identifier.
	ErrAlreadyOwned = errors.New("item already in collection")
	// ErrStoreClosed is returned by Subscribe after Close.
	ErrStoreClosed = errors.New("collection store closed")
)

// Item is one saved catalog item.
type Item struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Identifier  string    `json:"identifier"`
	Title       string    `json:"title"`
	Author      string    `json:"author,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Publisher   string    `json:"publisher,omitempty"`
	PublishDate string    `json:"publish_date,omitempty"`
	Price       string    `json:"price,omitempty"`
	Description string    `json:"description,omitempty"`
	AddedAt     time.Time `json:"added_at"`
}

// Snapshot is the full collection of one user at a point in time.
type Snapshot struct {
	UserID string    `json:"user_id"`
	Items  []Item    `json:"items"`
	At     time.Time `json:"at"`
}

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks bookscan/internal/collection Store

// Store is the persisted collection.
type Store interface {
	Exists(ctx context.Context, userID, identifier string) (bool, error)
	// Add returns the new item's id, or ErrAlreadyOwned.
	Add(ctx context.Context, userID string, item entity.CatalogItem) (string, error)
	List(ctx context.Context, userID string) ([]Item, error)
	// Subscribe sends the current snapshot, then one per change, until ctx ends.
	// The channel is closed when the subscription stops.
	Subscribe(ctx context.Context, userID string) (<-chan Snapshot, error)
}

func checkUser(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrUnauthenticated
	}
	return userID, nil
}
