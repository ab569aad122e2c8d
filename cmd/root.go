// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/zbridge/internal/config"
	"firestige.xyz/zbridge/internal/daemon"
)

var (
	// Global flags
	configFile string
	logLevel   string
)

// rootCmd reads packets from a radio device over a serial port.
var rootCmd = &cobra.Command{
	Use:   "zbridge [flags] <serial-device>",
	Short: "zbridge - IEEE 802.15.4 radio to host serial bridge",
	Long: `zbridge reads the frames a radio device sends over a serial port and
reports every captured IEEE 802.15.4 packet: its length, link quality, raw
bytes and decoded MAC header.

Features:
  - Resynchronizes on a noisy serial stream
  - Decodes Beacon, Data, Acknowledgement and MAC command frames
  - Writes captured packets to a pcap file for Wireshark
  - Exposes Prometheus metrics
  - Replays a pcap capture through an emulated device`,
	Version:      "0.1.0",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		runBridge(cmd, args[0])
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (keys, serial, capture, metrics, log)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level: trace, debug, info, warn, error")

	rootCmd.Flags().Int("baud", 115200, "serial baud rate")
	rootCmd.Flags().Duration("timeout", time.Second, "serial read timeout")
	rootCmd.Flags().String("pcap", "", "write received packets to this pcap file")
	rootCmd.Flags().String("metrics-listen", "", "serve Prometheus metrics on this address")

	// Add subcommands
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(keyhashCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(portsCmd)
}

// configOptions binds the command's flags onto configuration keys. Flags
// only win when given explicitly.
func configOptions(cmd *cobra.Command) []config.Option {
	flags := cmd.Flags()
	opts := []config.Option{
		config.WithFlag("log.level", flags.Lookup("log-level")),
		config.WithFlag("serial.baud_rate", flags.Lookup("baud")),
		config.WithFlag("serial.read_timeout", flags.Lookup("timeout")),
		config.WithFlag("capture.pcap_file", flags.Lookup("pcap")),
		config.WithFlag("device.lqi", flags.Lookup("lqi")),
		config.WithFlag("device.pace", flags.Lookup("pace")),
	}
	if f := flags.Lookup("metrics-listen"); f != nil && f.Changed {
		opts = append(opts,
			config.WithValue("metrics.enabled", true),
			config.WithValue("metrics.listen", f.Value.String()),
		)
	}
	return opts
}

func runBridge(cmd *cobra.Command, port string) {
	d, err := daemon.New(configFile, port, daemon.Options{Config: configOptions(cmd)})
	if err != nil {
		exitWithError("failed to load configuration", err)
	}

	if err := d.Start(); err != nil {
		var oe *daemon.OpenError
		if errors.As(err, &oe) {
			fmt.Fprintln(os.Stderr, oe.Error())
			os.Exit(1)
		}
		exitWithError("failed to start bridge", err)
	}

	if err := d.Run(); err != nil {
		exitWithError("bridge stopped", err)
	}
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
