package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/vibe-beacon/internal/compare"
)

func newCompareCmd() *cobra.Command {
	var useIndex bool

	cmd := &cobra.Command{
		Use:   "compare <beacon1> <beacon2>",
		Short: "Write the variants shared by two registered beacons",
		Long: `Find the variants present in both beacons with the same chromosome,
position, reference and alternate alleles and write them to
common_variants_<beacon1>_<beacon2>.json in the common variants directory.
Nothing is written when the beacons share no variants.`,
		Example: `  vibe-beacon compare beacon1 beacon2
  vibe-beacon compare beacon1 beacon3 --out results --use-index`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd, map[string]string{
				"registry": "registry",
				"base-dir": "base_dir",
				"index":    "index.path",
				"out":      "common_dir",
			}); err != nil {
				return err
			}
			return runCompare(args[0], args[1], useIndex)
		},
	}

	cmd.Flags().String("out", "", "Directory for comparison results (default: commonVariants)")
	addSourceFlags(cmd, &useIndex)

	return cmd
}

func runCompare(keyA, keyB string, useIndex bool) error {
	cat, err := openCatalog()
	if err != nil {
		return err
	}
	for _, k := range []string{keyA, keyB} {
		if !cat.Has(k) {
			return usageError{fmt.Errorf("unknown beacon %q", k)}
		}
	}

	_, comparer, closeFn, err := openBackends(cat, useIndex)
	if err != nil {
		return err
	}
	defer closeFn()
	if comparer == nil {
		comparer = compare.DocumentComparer{Catalog: cat}
	}

	common, err := comparer.CommonVariants(keyA, keyB)
	if err != nil {
		return err
	}

	path, err := compare.Write(viper.GetString("common_dir"), keyA, keyB, common)
	if errors.Is(err, compare.ErrNoCommonVariants) {
		fmt.Println("No common variants found. No output file will be generated.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Found %d common variants between %s and %s\n", len(common), keyA, keyB)
	fmt.Printf("Common variants written to %s\n", path)
	return nil
}
