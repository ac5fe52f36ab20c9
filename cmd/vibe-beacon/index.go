package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/inodb/vibe-beacon/internal/duckdb"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Load registered Beacon documents into the DuckDB index",
		Long: `Load every registered Beacon document into a DuckDB database for SQL-backed
queries and comparisons. Documents unchanged since they were last indexed
are skipped.`,
		Example: `  vibe-beacon index
  vibe-beacon index --index /data/beacon.duckdb`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd, map[string]string{
				"registry": "registry",
				"base-dir": "base_dir",
				"index":    "index.path",
			}); err != nil {
				return err
			}
			return runIndex()
		},
	}

	cmd.Flags().String("registry", "", "Registry file (default: beaconPaths.json)")
	cmd.Flags().String("base-dir", "", "Directory registry paths are relative to (default: .)")
	cmd.Flags().String("index", "", "DuckDB index file (default: beacon.duckdb)")

	return cmd
}

func runIndex() error {
	cat, err := openCatalog()
	if err != nil {
		return err
	}
	store, err := openIndex(cat)
	if err != nil {
		return err
	}
	return store.Close()
}

func logSyncStats(stats *duckdb.SyncStats) {
	for key, err := range stats.Failed {
		logger.Warn("cannot index beacon", zap.String("key", key), zap.Error(err))
	}
	logger.Info("index up to date",
		zap.Int("indexed", stats.Indexed),
		zap.Int("unchanged", stats.Unchanged),
		zap.Int("missing", stats.Missing),
		zap.Int("failed", len(stats.Failed)))
	if len(stats.Failed) > 0 || stats.Missing > 0 {
		fmt.Printf("Indexed %d, unchanged %d, missing %d, failed %d\n",
			stats.Indexed, stats.Unchanged, stats.Missing, len(stats.Failed))
	}
}
