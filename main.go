// Package main is the entry point for the zbridge radio bridge.
package main

import (
	"os"

	"firestige.xyz/zbridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
