package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"bookscan/internal/collection"
	"bookscan/internal/config"
	"bookscan/internal/entity"
	"bookscan/internal/logging"
)

// Adder is the collection write the seeder needs.
type Adder interface {
	Add(ctx context.Context, userID string, item entity.CatalogItem) (string, error)
}

var sampleItems = []entity.CatalogItem{
	{Identifier: "9780306406157", Title: "Foundations of Signal Processing", Author: "M. Vetterli", Publisher: "Cambridge University Press", PublishDate: "2014"},
	{Identifier: "9780143126560", Title: "The Signal and the Noise", Author: "Nate Silver", Publisher: "Penguin", PublishDate: "2015"},
	{Identifier: "9780262033848", Title: "Introduction to Algorithms", Author: "Thomas H. Cormen", Publisher: "MIT Press", PublishDate: "2009"},
	{Identifier: "9780134190440", Title: "The Go Programming Language", Author: "Alan A. A. Donovan", Publisher: "Addison-Wesley", PublishDate: "2015"},
	{Identifier: "9781491950357", Title: "Designing Data-Intensive Applications", Author: "Martin Kleppmann", Publisher: "O'Reilly", PublishDate: "2017"},
}

func main() {
	userID := flag.String("user", "demo-user", "Collection owner to seed")
	flag.Parse()

	config.LoadEnvFiles()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Error("connect", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	store := collection.NewPostgresStore(pool, 5*time.Second, logger)
	added, skipped, err := seed(ctx, store, *userID, sampleItems)
	if err != nil {
		logger.Error("seed failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("seed complete", slog.String("user_id", *userID), slog.Int("added", added), slog.Int("skipped", skipped))
}

// seed adds items, skipping ones the user already owns, so it can be rerun.
func seed(ctx context.Context, store Adder, userID string, items []entity.CatalogItem) (added, skipped int, err error) {
	for _, item := range items {
		_, err := store.Add(ctx, userID, item)
		switch {
		case errors.Is(err, collection.ErrAlreadyOwned):
			skipped++
		case err != nil:
			return added, skipped, fmt.Errorf("add %s: %w", item.Identifier, err)
		default:
			added++
		}
	}
	return added, skipped, nil
}
