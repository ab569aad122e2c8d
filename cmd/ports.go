package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/zbridge/internal/serial"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List the serial ports on this system",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ports, err := serial.Ports()
		if err != nil {
			exitWithError("failed to list ports", err)
		}
		if len(ports) == 0 {
			fmt.Println("No serial ports found")
			return
		}
		for _, p := range ports {
			fmt.Println(p)
		}
	},
}
