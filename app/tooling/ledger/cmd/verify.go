package cmd

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/storage"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	storageKind string
	dbPath      string
	genesisFile string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validate a chain held in local storage.",
	RunE:  verifyRun,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVarP(&storageKind, "storage", "s", storage.KindDisk, "Kind of storage: disk, pebble or leveldb.")
	verifyCmd.Flags().StringVarP(&dbPath, "db-path", "d", "zblock/blocks", "Path to the stored blocks.")
	verifyCmd.Flags().StringVarP(&genesisFile, "genesis", "g", "", "Optional genesis file.")
}

func verifyRun(cmd *cobra.Command, args []string) error {
	gen := genesis.Default()
	if genesisFile != "" {
		var err error
		if gen, err = genesis.Load(genesisFile); err != nil {
			return err
		}
	}

	strg, err := storage.Open(storageKind, dbPath)
	if err != nil {
		return err
	}
	defer strg.Close()

	n, err := Verify(strg, gen)
	if err != nil {
		return err
	}

	pterm.Success.Printfln("chain of %d blocks is valid", n)
	return nil
}

// Verify reads every block from the storage and checks it forms a valid
// chain rooted at the genesis block. It returns the chain length.
func Verify(strg database.Storage, gen genesis.Genesis) (int, error) {
	genBlock := database.GenesisBlock(gen)
	if err := database.VerifyGenesis(genBlock, gen.Difficulty); err != nil {
		return 0, err
	}

	chain, err := database.ReadAll(strg)
	if err != nil {
		return 0, fmt.Errorf("reading storage: %w", err)
	}

	switch {
	case len(chain) == 0:
		return 0, errors.New("storage is empty")
	case chain[0].Hash != genBlock.Hash:
		return 0, fmt.Errorf("%w: stored genesis %s, expected %s", database.ErrGenesisDrift, chain[0].Hash, genBlock.Hash)
	}

	if err := database.ValidateChain(chain, gen.Difficulty); err != nil {
		return 0, err
	}

	return len(chain), nil
}
