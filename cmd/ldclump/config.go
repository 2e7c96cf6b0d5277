package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configKeys lists the settings ldclump reads, with a short description.
var configKeys = map[string]string{
	"clump.threshold":  "minimum r² for clumping (default 0.1)",
	"clump.window":     "half-width of the clumping window in bp (default 1000000)",
	"clump.max_pvalue": "only clump variants at or below this p-value",
	"ld.db":            "reference LD database",
	"results.db":       "results database for recorded runs",
	"columns.marker":   "marker ID column (default MARKER_ID)",
	"columns.chrom":    "chromosome column (default #CHROM)",
	"columns.pos":      "position column (default BEGIN)",
	"columns.pvalue":   "p-value column (default PVALUE)",
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage ldclump configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.ldclump.yaml.",
		Example: `  ldclump config                          # show all config
  ldclump config set ld.db /data/ref.duckdb # default reference LD
  ldclump config set clump.threshold 0.2    # stricter clumping
  ldclump config get clump.threshold        # get a value
  ldclump config keys                       # list known keys`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow()
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigKeysCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(args[0])
		},
	}
}

func newConfigKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List known configuration keys",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := make([]string, 0, len(configKeys))
			for k := range configKeys {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%-18s %s\n", k, configKeys[k])
			}
			return nil
		},
	}
}

func runConfigShow() error {
	settings := viper.AllSettings()
	if len(settings) == 0 {
		fmt.Println("# No configuration set. Config file: ~/.ldclump.yaml")
		return nil
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func runConfigSet(key, value string) error {
	if _, ok := configKeys[key]; !ok {
		return usageError{fmt.Errorf("unknown config key %q (see 'ldclump config keys')", key)}
	}

	// Store numbers as numbers so the YAML stays typed.
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		viper.Set(key, f)
	} else {
		viper.Set(key, value)
	}

	// Ensure config file exists
	cfgPath := viper.ConfigFileUsed()
	if cfgPath == "" {
		var err error
		cfgPath, err = defaultConfigPath()
		if err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgPath); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Set %s = %s in %s\n", key, value, cfgPath)
	return nil
}

func runConfigGet(key string) error {
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Println(val)
	return nil
}
