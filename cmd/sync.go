package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"case-mirror/core/config"
	"case-mirror/core/database"
	"case-mirror/core/logger"
	"case-mirror/core/lookupcache"
	"case-mirror/core/remote"
	"case-mirror/core/storage"
	"case-mirror/feature/cases"
	casestore "case-mirror/feature/cases/store"
	casesync "case-mirror/feature/cases/sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	syncPartition string
	syncAll       bool
	syncMode      string
	syncDryRun    bool
	syncPrune     bool
)

// syncCmd runs one reconciliation pass from the command line.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the local mirror with the remote table service",
	Long: `Reconcile case records between the local mirror and the remote table
service. One partition maps to one remote table.

Modes:
  init         Bootstrap the local mirror from the remote table. Upserts every
               remote record and prunes local records absent remotely.
  diff         Incremental pull. Merges remote changes in without deleting
               anything; local-only records are marked pending.
  full-update  Push the local mirror outward in batches. Supports --dry-run
               and --prune.

The run summary is printed to stdout as JSON. The command exits non-zero
when any record-level error occurred.

Examples:
  # Bootstrap one partition
  sync --partition suite-a --mode init

  # Incremental pull for every partition in the remote catalog
  sync --all --mode diff

  # Push local edits, preview only
  sync --partition suite-a --mode full-update --dry-run

  # Push and delete remote orphans
  sync --partition suite-a --mode full-update --prune`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncPartition, "partition", "", "Partition to reconcile")
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "Reconcile every partition in the remote catalog")
	syncCmd.Flags().StringVar(&syncMode, "mode", "", "Reconciliation mode: init, diff, or full-update")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Report what a full-update would push without writing")
	syncCmd.Flags().BoolVar(&syncPrune, "prune", false, "Delete remote records absent locally (full-update only)")

	RootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if syncAll == (syncPartition != "") {
		return fmt.Errorf("exactly one of --partition or --all is required")
	}
	mode, ok := casesync.ParseMode(syncMode)
	if !ok {
		return fmt.Errorf("unknown mode %q (want init, diff, or full-update)", syncMode)
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logg.Sync()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := casestore.AutoMigrate(db); err != nil {
		return err
	}

	store, err := storage.NewClient(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage client: %w", err)
	}

	source := remote.NewClient(cfg.Remote, logg)
	recordStore := casestore.New(db)
	engine := casesync.NewEngine(recordStore, source, logg, casesync.Options{
		KeyField: cfg.Remote.KeyField,
	})
	catalog := lookupcache.New[map[string]string](time.Duration(cfg.Remote.CatalogTTLSeconds) * time.Second)
	service := cases.NewService(recordStore, source, engine, catalog, store, cfg.Storage.Bucket, logg)

	ctx := context.Background()

	partitions := []string{syncPartition}
	if syncAll {
		tables, err := source.ListTables(ctx)
		if err != nil {
			return fmt.Errorf("failed to list remote tables: %w", err)
		}
		partitions = partitions[:0]
		for partition := range tables {
			partitions = append(partitions, partition)
		}
		sort.Strings(partitions)
		if len(partitions) == 0 {
			return fmt.Errorf("remote catalog is empty")
		}
	}

	summaries := make(map[string]any, len(partitions))
	clean := true
	for _, partition := range partitions {
		result, err := service.RunSync(ctx, partition, mode, syncDryRun, syncPrune)
		if err != nil {
			return fmt.Errorf("sync of partition %s failed: %w", partition, err)
		}
		summaries[partition] = result
		if !syncSucceeded(result) {
			clean = false
			logg.Warn("Partition completed with record errors", zap.String("partition", partition))
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summaries); err != nil {
		return err
	}

	if !clean {
		return fmt.Errorf("completed with record-level errors")
	}
	return nil
}

func syncSucceeded(result any) bool {
	switch r := result.(type) {
	case *casesync.SyncResult:
		return r.Success
	case *casesync.PushResult:
		return r.Success
	default:
		return true
	}
}
