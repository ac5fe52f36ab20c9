package main

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configKeys lists the settings understood by vibe-beacon.
var configKeys = []string{
	"input_dir",
	"output_dir",
	"registry",
	"base_dir",
	"common_dir",
	"workers",
	"defaults.assembly",
	"defaults.description",
	"organization.id",
	"organization.name",
	"index.path",
	"serve.addr",
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage vibe-beacon configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.vibe-beacon.yaml.",
		Example: `  vibe-beacon config                             # show all config
  vibe-beacon config set defaults.assembly GRCh37  # change the fallback assembly
  vibe-beacon config get registry                  # get a value`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow()
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(args[0])
		},
	}
}

func runConfigShow() error {
	out, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Printf("# Config file: %s\n", used)
	} else {
		fmt.Println("# No config file found, showing defaults. Config file: ~/.vibe-beacon.yaml")
	}
	fmt.Print(string(out))
	return nil
}

func runConfigSet(key, value string) error {
	if !slices.Contains(configKeys, key) {
		return usageError{fmt.Errorf("unknown config key %q", key)}
	}

	if key == "workers" {
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return usageError{fmt.Errorf("workers must be a positive integer, got %q", value)}
		}
		viper.Set(key, n)
	} else {
		viper.Set(key, value)
	}

	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		var err error
		if cfgFile, err = defaultConfigPath(); err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func runConfigGet(key string) error {
	if !viper.IsSet(key) {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Println(viper.Get(key))
	return nil
}
