package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/aqlanhadi/kisht/ledger"
	"github.com/spf13/cobra"
)

var (
	importPath    string
	importTimeout int
)

var importCmd = &cobra.Command{
	Use:   "import [file or directory]",
	Short: "Reconcile bank statements against customers' UPI IDs",
	Long: `Imports bank statement exports (.xlsx, .xlsm or .csv) and posts every UPI
credit whose sender is linked to a customer. Bank references are recorded so
importing the same statement again adds nothing.

Examples:
  kisht import -f statement.xlsx
  kisht import -f ~/statements/
  kisht import -f statement.csv --store memory`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logProgress()

		if importPath == "" && len(args) == 1 {
			importPath = args[0]
		}
		if importPath == "" {
			fmt.Fprintln(os.Stderr, "error: --file/-f is required")
			exit(1)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, time.Duration(importTimeout)*time.Second)
		defer cancel()

		l, closeStore, err := openLedger(ctx)
		if err != nil {
			fail(err, "open ledger")
		}
		defer closeStore()

		result, err := l.ImportPath(ctx, importPath)
		if err != nil && errors.Is(err, ledger.ErrFatal) {
			fmt.Fprintln(os.Stderr, err)
			exit(1)
		}

		if outputJSON {
			printJSON(result)
		} else {
			printImport(l, result)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "import stopped: %v\n", err)
			exit(1)
		}
	},
}

func printImport(l *ledger.Ledger, result *ledger.PathImport) {
	if result == nil {
		return
	}
	if len(result.Files) > 1 {
		files := make([]string, 0, len(result.Files))
		for file := range result.Files {
			files = append(files, file)
		}
		sort.Strings(files)
		for _, file := range files {
			fmt.Printf("== %s\n%s\n", file, l.FormatSummary(result.Files[file]))
		}
		fmt.Println("== Total")
	}
	fmt.Print(l.FormatSummary(result.Combined))

	for _, failure := range result.Failed {
		fmt.Printf("FATAL: %s\n", failure)
	}
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&importPath, "file", "f", "", "statement file or directory")
	importCmd.Flags().IntVar(&importTimeout, "timeout", 300, "operation timeout in seconds")
}
