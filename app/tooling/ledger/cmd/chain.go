package cmd

import (
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Print the node's chain as a table.",
	RunE:  chainRun,
}

func init() {
	rootCmd.AddCommand(chainCmd)
}

func chainRun(cmd *cobra.Command, args []string) error {
	var chain []database.BlockData
	if err := get(nodeURL+"/v1/chain", &chain); err != nil {
		return err
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(chainTable(chain)).Srender()
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), table)
	return nil
}

// chainTable formats the blocks as rows for display.
func chainTable(chain []database.BlockData) pterm.TableData {
	rows := pterm.TableData{{"#", "Hash", "Previous", "Time", "Nonce", "Data"}}

	for i, blk := range chain {
		rows = append(rows, []string{
			strconv.Itoa(i),
			short(blk.Hash),
			short(blk.PrevHash),
			time.Unix(blk.TimeStamp, 0).UTC().Format(time.RFC3339),
			strconv.FormatUint(blk.Nonce, 10),
			payload(blk.Data),
		})
	}

	return rows
}

func short(hash string) string {
	if len(hash) <= 16 {
		return hash
	}
	return hash[:16]
}

func payload(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return fmt.Sprintf("%d bytes", len(data))
}
