package collection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bookscan/internal/entity"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS collection_items (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	identifier   TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	author       TEXT NOT NULL DEFAULT '',
	image_url    TEXT NOT NULL DEFAULT '',
	publisher    TEXT NOT NULL DEFAULT '',
	publish_date TEXT NOT NULL DEFAULT '',
	price        TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	added_at     TEXT NOT NULL,
	UNIQUE (user_id, identifier)
);
CREATE INDEX IF NOT EXISTS idx_collection_items_user_added ON collection_items (user_id, added_at);
`

// SQLiteStore is a single-process Store for local use.
type SQLiteStore struct {
	db  *sql.DB
	hub *hub
	now func() time.Time
}

// OpenSQLite opens or creates the database at path. ":memory:" is accepted.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, hub: newHub(), now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Exists(ctx context.Context, userID, identifier string) (bool, error) {
	userID, err := checkUser(userID)
	if err != nil {
		return false, err
	}
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM collection_items WHERE user_id = ? AND identifier = ?)`,
		userID, identifier,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check collection item: %w", err)
	}
	return exists, nil
}

func (s *SQLiteStore) Add(ctx context.Context, userID string, item entity.CatalogItem) (string, error) {
	userID, err := checkUser(userID)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	addedAt := s.now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO collection_items (
			id, user_id, identifier, title, author, image_url, publisher, publish_date, price, description, added_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, identifier) DO NOTHING`,
		id, userID, item.Identifier, item.Title, item.Author, item.ImageURL,
		item.Publisher, item.PublishDate, item.Price, item.Description,
		addedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert collection item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return "", ErrAlreadyOwned
	}

	if s.hub.hasSubscribers(userID) {
		if items, listErr := s.List(ctx, userID); listErr == nil {
			s.hub.publish(Snapshot{UserID: userID, Items: items, At: s.now().UTC()})
		}
	}
	return id, nil
}

// List returns the newest additions first.
func (s *SQLiteStore) List(ctx context.Context, userID string) ([]Item, error) {
	userID, err := checkUser(userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, identifier, title, author, image_url, publisher, publish_date, price, description, added_at
		FROM collection_items
		WHERE user_id = ?
		ORDER BY added_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list collection: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		var addedAt string
		if err := rows.Scan(
			&it.ID, &it.UserID, &it.Identifier, &it.Title, &it.Author, &it.ImageURL,
			&it.Publisher, &it.PublishDate, &it.Price, &it.Description, &addedAt,
		); err != nil {
			return nil, fmt.Errorf("scan collection item: %w", err)
		}
		it.AddedAt, _ = time.Parse(time.RFC3339Nano, addedAt)
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) Subscribe(ctx context.Context, userID string) (<-chan Snapshot, error) {
	userID, err := checkUser(userID)
	if err != nil {
		return nil, err
	}
	sub := s.hub.add(userID)
	items, err := s.List(ctx, userID)
	if err != nil {
		s.hub.remove(userID, sub)
		return nil, err
	}
	s.hub.send(sub, Snapshot{UserID: userID, Items: items, At: s.now().UTC()})

	go func() {
		<-ctx.Done()
		s.hub.remove(userID, sub)
	}()
	return sub.ch, nil
}
