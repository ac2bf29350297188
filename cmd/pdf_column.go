package cmd

import (
	"fmt"
	"os"

	"github.com/aqlanhadi/kisht/extractor"
	"github.com/spf13/cobra"
)

var (
	pdfFile   string
	pdfColumn int
)

var pdfColumnCmd = &cobra.Command{
	Use:   "pdf-column",
	Short: "Print one column of every row in a PDF statement",
	Long:  `Reads the text rows of a PDF and prints the value at the given 0-based column, skipping blanks and the column caption.`,
	Run: func(cmd *cobra.Command, args []string) {
		if pdfFile == "" {
			fmt.Fprintln(os.Stderr, "error: --file is required")
			exit(1)
		}

		f, err := os.Open(pdfFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			exit(1)
		}
		defer f.Close()

		values, err := extractor.ExtractPDFColumn(f, pdfColumn)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			exit(1)
		}

		if outputJSON {
			printJSON(values)
			return
		}
		for i, v := range values {
			fmt.Printf("%d. %s\n", i+1, v)
		}
	},
}

func init() {
	rootCmd.AddCommand(pdfColumnCmd)
	pdfColumnCmd.Flags().StringVarP(&pdfFile, "file", "f", "", "PDF file to read")
	pdfColumnCmd.Flags().IntVar(&pdfColumn, "column", extractor.DefaultPDFColumn, "0-based column to print")
}
