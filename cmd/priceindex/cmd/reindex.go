package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quillcart/priceindex/internal/baseprice"
	"github.com/quillcart/priceindex/internal/core/config"
	"github.com/quillcart/priceindex/internal/core/db"
	"github.com/quillcart/priceindex/internal/core/logging"
	"github.com/quillcart/priceindex/internal/indexer"
	"github.com/quillcart/priceindex/internal/store"
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Recompute the catalog price-rule index",
	Long: `Recomputes, for every (product, customer group, website, date) combination,
the lowest price produced by cascading the active promotional pricing rules,
and atomically replaces each website's stored index rows.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
	reindexCmd.Flags().String("at", "", "reference instant, RFC3339 (default: now)")
	reindexCmd.Flags().Int64Slice("website", nil, "limit the run to these website ids (repeatable)")
}

func runReindex(cmd *cobra.Command, args []string) error {
	log, err := logging.New(logLevel, logFormat)
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	at := time.Now()
	if v, _ := cmd.Flags().GetString("at"); v != "" {
		at, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("invalid --at value: %w", err)
		}
	}
	websiteIDs, _ := cmd.Flags().GetInt64Slice("website")

	if dbURL == "" {
		return fmt.Errorf("--db-url required")
	}
	database, err := db.Open(dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	var migrationID string
	checkQuery := `SELECT migration_id FROM migrations WHERE migration_id = '001_initial_schema.sql'`
	err = database.Get(&migrationID, database.Rebind(checkQuery))
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("migration 001_initial_schema not applied - run 'priceindex migrate' first")
		}
		return fmt.Errorf("failed to check migrations: %w", err)
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}
	st, err := store.New(queries)
	if err != nil {
		return err
	}
	resolver, err := baseprice.NewResolver(st)
	if err != nil {
		return err
	}

	var notifier indexer.Notifier
	if cfg.RedisAddr != "" {
		redisNotifier, err := indexer.NewRedisNotifier(cfg.RedisAddr, cfg.RedisChannel, log)
		if err != nil {
			return fmt.Errorf("failed to create notifier: %w", err)
		}
		defer redisNotifier.Close()
		notifier = redisNotifier
	} else {
		notifier = indexer.NewLogNotifier(log)
	}

	ix, err := indexer.New(st, resolver, notifier, cfg, log)
	if err != nil {
		return err
	}

	// The materializer's per-website transactions make interruption safe:
	// cancelling mid-run leaves unfinished websites on their previous index.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("starting priceindex", "version", Version, "at", at.UTC().Format(time.RFC3339))
	result, err := ix.Recompute(ctx, at, websiteIDs)
	if err != nil {
		return err
	}

	for _, w := range result.Websites {
		if w.Failed() {
			fmt.Printf("website %d: FAILED (%v)\n", w.WebsiteID, w.Err)
			continue
		}
		fmt.Printf("website %d: %d entries, %d live rules, %d changed products, %d warnings\n",
			w.WebsiteID, w.Entries, w.LiveRules, len(w.ChangedProducts), len(w.Warnings))
	}
	if failed := result.FailedWebsites(); len(failed) > 0 {
		return fmt.Errorf("reindex completed with failed websites: %v", failed)
	}
	return nil
}
