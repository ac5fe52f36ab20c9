package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/vibe-beacon/internal/beacon"
	"github.com/inodb/vibe-beacon/internal/convert"
)

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a directory of VCF files to Beacon documents",
		Long: `Convert every .vcf and .vcf.gz file in the input directory to a Beacon
JSON document and record each document in the beacon registry.

Documents that already exist are not regenerated but are still registered.
Registry keys are assigned in file name order and never change once written.`,
		Example: `  vibe-beacon convert
  vibe-beacon convert --input data/vcf --output data/beacon --registry data/beaconPaths.json
  vibe-beacon convert --workers 4 --assembly GRCh37`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(cmd, map[string]string{
				"input":       "input_dir",
				"output":      "output_dir",
				"registry":    "registry",
				"base-dir":    "base_dir",
				"workers":     "workers",
				"assembly":    "defaults.assembly",
				"description": "defaults.description",
			}); err != nil {
				return err
			}
			return runConvert()
		},
	}

	cmd.Flags().StringP("input", "i", "", "Directory of VCF files (default: vcf)")
	cmd.Flags().StringP("output", "o", "", "Directory for Beacon documents (default: beacon)")
	cmd.Flags().String("registry", "", "Registry file (default: beaconPaths.json)")
	cmd.Flags().String("base-dir", "", "Directory registry paths are relative to (default: .)")
	cmd.Flags().IntP("workers", "j", 1, "Number of files converted concurrently")
	cmd.Flags().String("assembly", "", "Assembly used when a file has no ##assembly header (default: GRCh38)")
	cmd.Flags().String("description", "", "Description used when a file has no GT format description")

	return cmd
}

func runConvert() error {
	cfg := convert.Config{
		InputDir:     viper.GetString("input_dir"),
		OutputDir:    viper.GetString("output_dir"),
		RegistryPath: viper.GetString("registry"),
		BaseDir:      viper.GetString("base_dir"),
		Workers:      viper.GetInt("workers"),
		Defaults: beacon.Defaults{
			AssemblyID:  viper.GetString("defaults.assembly"),
			Description: viper.GetString("defaults.description"),
			Organization: beacon.Organization{
				ID:   viper.GetString("organization.id"),
				Name: viper.GetString("organization.name"),
			},
		},
	}

	c := convert.New(cfg)
	c.SetLogger(logger)

	ctx, stop := signalContext()
	defer stop()

	sum, err := c.Run(ctx)
	if err != nil {
		if errors.Is(err, convert.ErrConfig) {
			return fmt.Errorf("conversion aborted: %w", err)
		}
		return err
	}

	for _, e := range sum.Registered {
		fmt.Printf("%s\t%s\n", e.Key, e.Path)
	}
	fmt.Printf("Processed %d files: %d converted, %d already present, %d failed\n",
		sum.Files, sum.Converted, sum.Existing, sum.Failed)
	for _, f := range sum.Failures {
		fmt.Printf("  failed: %v\n", f)
	}
	return nil
}
