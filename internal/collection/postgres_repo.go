package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bookscan/internal/entity"
	"bookscan/internal/logging"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// notifyChannel carries the user id of every collection change.
const notifyChannel = "collection_changed"

// PostgresStore shares collection changes across processes with LISTEN/NOTIFY.
type PostgresStore struct {
	db      *pgxpool.Pool
	timeout time.Duration
	logger  *slog.Logger
	hub     *hub

	listenMu   sync.Mutex
	listening  bool
	closed     bool
	stopListen context.CancelFunc
	listenDone chan struct{}
}

func NewPostgresStore(db *pgxpool.Pool, timeout time.Duration, logger *slog.Logger) *PostgresStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresStore{
		db:      db,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "collection"),
		hub:     newHub(),
	}
}

func (r *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *PostgresStore) Exists(ctx context.Context, userID, identifier string) (bool, error) {
	userID, err := checkUser(userID)
	if err != nil {
		return false, err
	}
	const query = `
		SELECT EXISTS(
			SELECT 1 FROM collection_items
			WHERE user_id = $1 AND identifier = $2
		)`
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	var exists bool
	if err := r.db.QueryRow(timeoutCtx, query, userID, identifier).Scan(&exists); err != nil {
		return false, fmt.Errorf("check collection item: %w", err)
	}
	return exists, nil
}

func (r *PostgresStore) Add(ctx context.Context, userID string, item entity.CatalogItem) (string, error) {
	userID, err := checkUser(userID)
	if err != nil {
		return "", err
	}
	const insertSQL = `
		INSERT INTO collection_items (
			id, user_id, identifier, title, author, image_url, publisher, publish_date, price, description
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, identifier) DO NOTHING
		RETURNING id`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.Begin(timeoutCtx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(timeoutCtx) }()

	var id string
	err = tx.QueryRow(timeoutCtx, insertSQL,
		uuid.NewString(), userID, item.Identifier, item.Title, item.Author, item.ImageURL,
		item.Publisher, item.PublishDate, item.Price, item.Description,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrAlreadyOwned
	}
	if err != nil {
		return "", fmt.Errorf("insert collection item: %w", err)
	}

	// delivered to listeners only once the transaction commits
	if _, err := tx.Exec(timeoutCtx, `SELECT pg_notify($1, $2)`, notifyChannel, userID); err != nil {
		return "", fmt.Errorf("notify: %w", err)
	}
	if err := tx.Commit(timeoutCtx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

func (r *PostgresStore) List(ctx context.Context, userID string) ([]Item, error) {
	userID, err := checkUser(userID)
	if err != nil {
		return nil, err
	}
	const dataSQL = `
		SELECT id, user_id, identifier, title, author, image_url, publisher, publish_date, price, description, added_at
		FROM collection_items
		WHERE user_id = $1
		ORDER BY added_at DESC, id`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, dataSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("list collection: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(
			&it.ID, &it.UserID, &it.Identifier, &it.Title, &it.Author, &it.ImageURL,
			&it.Publisher, &it.PublishDate, &it.Price, &it.Description, &it.AddedAt,
		); err != nil {
			return nil, fmt.Errorf("scan collection item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Subscribe registers a subscriber on the store's hub. All subscribers share
// one LISTEN connection, started on first use and held until Close.
func (r *PostgresStore) Subscribe(ctx context.Context, userID string) (<-chan Snapshot, error) {
	userID, err := checkUser(userID)
	if err != nil {
		return nil, err
	}
	sub := r.hub.add(userID)
	if err := r.ensureListener(ctx); err != nil {
		r.hub.remove(userID, sub)
		return nil, err
	}
	items, err := r.List(ctx, userID)
	if err != nil {
		r.hub.remove(userID, sub)
		return nil, err
	}
	r.hub.send(sub, Snapshot{UserID: userID, Items: items, At: time.Now().UTC()})

	go func() {
		<-ctx.Done()
		r.hub.remove(userID, sub)
	}()
	return sub.ch, nil
}

// Close stops the listener and ends every subscription.
func (r *PostgresStore) Close() {
	r.listenMu.Lock()
	r.closed = true
	stop, done := r.stopListen, r.listenDone
	r.listenMu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
	r.hub.closeAll()
}

func (r *PostgresStore) ensureListener(ctx context.Context) error {
	r.listenMu.Lock()
	defer r.listenMu.Unlock()
	if r.closed {
		return ErrStoreClosed
	}
	if r.listening {
		return nil
	}

	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen conn: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return fmt.Errorf("listen: %w", err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.listening = true
	r.stopListen = cancel
	r.listenDone = done
	go r.listen(listenCtx, conn, done)
	return nil
}

// listen fans notifications out to the hub. When the connection fails every
// subscription ends; the next Subscribe starts a new listener.
func (r *PostgresStore) listen(ctx context.Context, conn *pgxpool.Conn, done chan struct{}) {
	defer close(done)
	defer r.releaseListener(conn)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Warn("collection listener stopped", slog.Any("error", err))
			}
			r.listenMu.Lock()
			r.listening = false
			r.stopListen = nil
			r.listenDone = nil
			r.listenMu.Unlock()
			r.hub.closeAll()
			return
		}
		userID := n.Payload
		if !r.hub.hasSubscribers(userID) {
			continue
		}
		items, err := r.List(ctx, userID)
		if err != nil {
			r.logger.Warn("collection snapshot failed",
				slog.String("user_id", userID),
				slog.Any("error", err))
			continue
		}
		r.hub.publish(Snapshot{UserID: userID, Items: items, At: time.Now().UTC()})
	}
}

func (r *PostgresStore) releaseListener(conn *pgxpool.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if _, err := conn.Exec(ctx, "UNLISTEN *"); err != nil {
		// a connection in an unknown state must not go back to the pool
		_ = conn.Conn().Close(ctx)
	}
	conn.Release()
}
