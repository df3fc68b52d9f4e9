package cmd

import (
	"github.com/ardanlabs/ledger/foundation/identity"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var keyFile string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a node identity key.",
	RunE:  keygenRun,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVarP(&keyFile, "key-file", "k", "zblock/node.ecdsa", "Path to write the private key.")
}

func keygenRun(cmd *cobra.Command, args []string) error {
	id, err := identity.New()
	if err != nil {
		return err
	}

	if err := identity.Save(keyFile, id); err != nil {
		return err
	}

	pterm.Success.Printfln("node id %s written to %s", id.NodeID(), keyFile)
	return nil
}
