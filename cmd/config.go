package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/zbridge/internal/config"
	"firestige.xyz/zbridge/internal/security"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate and print the effective configuration",
	Long: `Load the configuration file given with --config, apply environment
overrides (ZBRIDGE_*) and defaults, validate it and print the result as YAML.

Keys that do not parse are reported; the bridge skips them.

Examples:
  zbridge config -c zbridge.yml
  ZBRIDGE_SERIAL_BAUD_RATE=230400 zbridge config`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runConfig(os.Stdout, configFile, configOptions(cmd)...); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
			os.Exit(1)
		}
	},
}

func runConfig(w io.Writer, path string, opts ...config.Option) error {
	cfg, err := config.Load(path, opts...)
	if err != nil {
		return err
	}
	out, err := cfg.Dump()
	if err != nil {
		return err
	}
	fmt.Fprint(w, out)

	keys := security.NewKeyRing(nil)
	for _, err := range keys.AddStrings(cfg.Keys) {
		fmt.Fprintf(w, "# skipped key: %v\n", err)
	}
	fmt.Fprintf(w, "# %d of %d keys usable\n", keys.Len(), len(cfg.Keys))
	return nil
}
