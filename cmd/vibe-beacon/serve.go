package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/vibe-beacon/internal/server"
)

func newServeCmd() *cobra.Command {
	var useIndex bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve queries and comparisons over HTTP",
		Long: `Serve the registered beacons over HTTP:

  GET /beacons                                   registry entries
  GET /query?chromosome=&position=&referenceBases=&alternateBases=&beaconId=
  GET /compare?beacon1Id=&beacon2Id=             common variants`,
		Example: `  vibe-beacon serve
  vibe-beacon serve --addr 127.0.0.1:9000 --use-index`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd, map[string]string{
				"registry": "registry",
				"base-dir": "base_dir",
				"index":    "index.path",
				"addr":     "serve.addr",
			}); err != nil {
				return err
			}
			return runServe(useIndex)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default: :8080)")
	addSourceFlags(cmd, &useIndex)

	return cmd
}

func runServe(useIndex bool) error {
	cat, err := openCatalog()
	if err != nil {
		return err
	}
	searcher, comparer, closeFn, err := openBackends(cat, useIndex)
	if err != nil {
		return err
	}
	defer closeFn()

	srv := server.New(cat, searcher, comparer)
	srv.SetLogger(logger)

	ctx, stop := signalContext()
	defer stop()
	return srv.ListenAndServe(ctx, viper.GetString("serve.addr"))
}
