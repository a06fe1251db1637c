// nexuskeys generates a Falcon key pair for node authentication and
// prints it hex encoded, ready for the nodes section of the config file.
package main

import (
	"fmt"
	"os"

	"github.com/NamecoinGithub/NexusMiner-sub000/keys"

	"github.com/spf13/cobra"
)

var mainCmd = &cobra.Command{
	Use:   "nexuskeys",
	Short: "Generate a Falcon key pair for miner authentication",
	Run: func(cmd *cobra.Command, args []string) {
		generate()
	},
}

func generate() {
	pair, err := keys.GenerateKeyPair(nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "keygen failed:", err)
		os.Exit(1)
	}
	fmt.Println("pubkey: ", pair.PublicKeyHex())
	fmt.Println("privkey:", pair.PrivateKeyHex())
}

func main() {
	mainCmd.Execute()
}
