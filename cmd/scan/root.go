package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"bookscan/internal/admission"
	"bookscan/internal/collection"
	"bookscan/internal/config"
	"bookscan/internal/logging"
	"bookscan/internal/lookup"
	"bookscan/internal/lookupcache"
	"bookscan/internal/platform/openlibrary"
)

type commandContext struct {
	dbFlag       *string
	logLevelFlag *string

	configOnce sync.Once
	config     config.Config
	configErr  error
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		config.LoadEnvFiles()
		c.config, c.configErr = config.Load()
		if c.configErr != nil {
			return
		}
		if v := strings.TrimSpace(*c.dbFlag); v != "" {
			c.config.CollectionDBPath = v
		}
		if v := strings.TrimSpace(*c.logLevelFlag); v != "" {
			c.config.LogLevel = v
		}
	})
	return c.config, c.configErr
}

// logger writes to stderr so stdout stays readable.
func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})
}

func (c *commandContext) openStore(ctx context.Context) (*collection.SQLiteStore, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := collection.OpenSQLite(ctx, cfg.CollectionDBPath)
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", cfg.CollectionDBPath, err)
	}
	return store, nil
}

// lookupClient builds a lookup client with its own cache and admission window.
func (c *commandContext) lookupClient(logger *slog.Logger) (*lookup.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	provider := openlibrary.NewClient(
		cfg.OpenLibrary.UserAgent,
		cfg.OpenLibrary.RPS,
		cfg.OpenLibrary.MaxRetries,
		openlibrary.WithBaseURL(cfg.OpenLibrary.BaseURL),
	)
	return lookup.NewClient(
		provider,
		lookupcache.New(lookupcache.WithTTL(cfg.Scan.CacheTTL)),
		admission.New(cfg.Scan.AdmissionPolicy()),
		logging.NewComponentLogger(logger, "lookup"),
	), nil
}

func newRootCommand() *cobra.Command {
	var dbFlag, logLevelFlag string
	ctx := &commandContext{dbFlag: &dbFlag, logLevelFlag: &logLevelFlag}

	rootCmd := &cobra.Command{
		Use:           "scan",
		Short:         "Scan book barcodes into your collection",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "Collection database path (default from COLLECTION_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newLookupCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newTokenCommand(ctx))

	return rootCmd
}
