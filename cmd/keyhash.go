package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/zbridge/internal/security"
)

var keyhashCmd = &cobra.Command{
	Use:   "keyhash <key|default> <input>",
	Short: "Derive a key with the ZigBee keyed hash",
	Long: `Compute the ZigBee keyed hash of a 128-bit key and a single input byte.

The key is 16 hex bytes, colon separated or as 32 digits, or "default" for
the ZigBee default link key. The input byte may be decimal or 0x-prefixed;
0x00 derives the key-transport key and 0x02 the key-load key.

Examples:
  zbridge keyhash default 0
  zbridge keyhash 40:41:42:43:44:45:46:47:48:49:4a:4b:4c:4d:4e:4f 0xc0`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runKeyhash(os.Stdout, args[0], args[1]); err != nil {
			exitWithError("keyhash failed", err)
		}
	},
}

func runKeyhash(w io.Writer, keyArg, inputArg string) error {
	key := security.DefaultLinkKey
	if !strings.EqualFold(keyArg, "default") {
		k, err := security.ParseKey(keyArg)
		if err != nil {
			return err
		}
		key = k
	}
	input, err := strconv.ParseUint(inputArg, 0, 8)
	if err != nil {
		return fmt.Errorf("invalid input byte %q: %w", inputArg, err)
	}

	hashed, err := security.HashKey(security.NewAESCipher(), key, byte(input))
	if err != nil {
		return err
	}
	fmt.Fprintln(w, hashed)
	return nil
}
