package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/aqlanhadi/kisht/extractor"
	"github.com/spf13/cobra"
)

var extractFile string

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Parse a statement without touching the ledger",
	Long: `Parses a bank statement export and prints the UPI credits it would
import, together with how many rows were skipped and why.`,
	Run: func(cmd *cobra.Command, args []string) {
		if cfgErr != nil {
			fail(cfgErr, "load configuration")
		}

		f, err := os.Open(extractFile)
		if err != nil {
			fail(err, "open statement")
		}
		defer f.Close()

		result, err := extractor.ExtractStatement(f, filepath.Base(extractFile), cfg.Statement.Parser())
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			f.Close()
			exit(1)
		}

		if outputJSON {
			printJSON(result)
			return
		}
		printExtraction(result)
	},
}

func printExtraction(result *extractor.Extraction) {
	w := newTable()
	fmt.Fprintln(w, "ROW\tDATE\tUPI ID\tREFERENCE\tAMOUNT")
	for _, tx := range result.Transactions {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", tx.Row, tx.Date, tx.UpiHandle, tx.BankReference, money(tx.Amount))
	}
	w.Flush()

	fmt.Printf("\n%d UPI credits from %d attempted rows\n", len(result.Transactions), result.Attempted)
	reasons := make([]string, 0, len(result.Skipped))
	for reason := range result.Skipped {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Printf("  skipped %-22s %d\n", reason, result.Skipped[reason])
	}
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVarP(&extractFile, "file", "f", "", "statement file (.xlsx, .xlsm or .csv)")
	extractCmd.MarkFlagRequired("file")
}
