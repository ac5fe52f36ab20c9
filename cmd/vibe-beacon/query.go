package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/vibe-beacon/internal/compare"
	"github.com/inodb/vibe-beacon/internal/duckdb"
	"github.com/inodb/vibe-beacon/internal/query"
	"github.com/inodb/vibe-beacon/internal/registry"
)

func newQueryCmd() *cobra.Command {
	var (
		req      query.Request
		useIndex bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Search registered Beacon documents for an allele",
		Long: `Search the registered Beacon documents for variants matching every given
criterion and print a Beacon allele response as JSON. Criteria left empty
match anything. --alt matches any allele of a multi-allelic site.`,
		Example: `  vibe-beacon query --chromosome 1 --position 100
  vibe-beacon query --chromosome 1 --position 100 --ref A --alt T --beacon beacon2
  vibe-beacon query --alt T --use-index`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd, map[string]string{
				"registry": "registry",
				"base-dir": "base_dir",
				"index":    "index.path",
			}); err != nil {
				return err
			}
			if _, err := query.NewFilter(req); err != nil {
				return usageError{err}
			}
			return runQuery(req, useIndex)
		},
	}

	cmd.Flags().StringVar(&req.Chromosome, "chromosome", "", "Chromosome")
	cmd.Flags().StringVar(&req.Position, "position", "", "Position (integer)")
	cmd.Flags().StringVar(&req.ReferenceBases, "ref", "", "Reference bases")
	cmd.Flags().StringVar(&req.AlternateBases, "alt", "", "Alternate allele")
	cmd.Flags().StringVar(&req.BeaconID, "beacon", "", "Only search this registry key (e.g. beacon1)")
	addSourceFlags(cmd, &useIndex)

	return cmd
}

// addSourceFlags declares the flags selecting where documents are read from.
func addSourceFlags(cmd *cobra.Command, useIndex *bool) {
	cmd.Flags().String("registry", "", "Registry file (default: beaconPaths.json)")
	cmd.Flags().String("base-dir", "", "Directory registry paths are relative to (default: .)")
	cmd.Flags().String("index", "", "DuckDB index file (default: beacon.duckdb)")
	cmd.Flags().BoolVar(useIndex, "use-index", false, "Refresh and search the DuckDB index instead of reading documents")
}

// openCatalog opens the configured registry.
func openCatalog() (*registry.Catalog, error) {
	return registry.OpenCatalog(viper.GetString("registry"), viper.GetString("base_dir"))
}

// openIndex opens the configured index and brings it up to date with cat.
func openIndex(cat *registry.Catalog) (*duckdb.Store, error) {
	store, err := duckdb.Open(viper.GetString("index.path"))
	if err != nil {
		return nil, err
	}
	stats, err := store.Sync(cat)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("syncing index: %w", err)
	}
	logSyncStats(stats)
	return store, nil
}

// openBackends returns the searcher and comparer for cat. Both are nil when
// documents are read directly. The returned close function is never nil.
func openBackends(cat *registry.Catalog, useIndex bool) (query.Searcher, compare.Comparer, func(), error) {
	if !useIndex {
		return nil, nil, func() {}, nil
	}
	store, err := openIndex(cat)
	if err != nil {
		return nil, nil, nil, err
	}
	return store, store, func() { store.Close() }, nil
}

func runQuery(req query.Request, useIndex bool) error {
	cat, err := openCatalog()
	if err != nil {
		return err
	}
	searcher, _, closeFn, err := openBackends(cat, useIndex)
	if err != nil {
		return err
	}
	defer closeFn()

	engine := query.NewEngine(cat, searcher)
	engine.SetLogger(logger)

	resp, err := engine.Query(req)
	if err != nil {
		return usageError{err}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "    ")
	return enc.Encode(resp)
}
