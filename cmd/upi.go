package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var upiCmd = &cobra.Command{
	Use:   "upi",
	Short: "Manage the UPI IDs linked to customers",
}

var upiListCmd = &cobra.Command{
	Use:   "list ACCOUNT",
	Short: "List a customer's UPI IDs",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		l, closeStore, err := openLedger(cmd.Context())
		if err != nil {
			fail(err, "open ledger")
		}
		defer closeStore()

		ids, err := l.ListUpiIDs(cmd.Context(), args[0])
		if err != nil {
			fail(err, "load UPI IDs")
		}
		if outputJSON {
			printJSON(ids)
			return
		}
		w := newTable()
		fmt.Fprintln(w, "UPI ID\tACTIVE\tLINKED")
		for _, id := range ids {
			fmt.Fprintf(w, "%s\t%t\t%s\n", id.Handle, id.Active, day(id.CreatedAt))
		}
		w.Flush()
	},
}

var upiAddCmd = &cobra.Command{
	Use:   "add ACCOUNT UPI_ID",
	Short: "Link a UPI ID to a customer",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		l, closeStore, err := openLedger(cmd.Context())
		if err != nil {
			fail(err, "open ledger")
		}
		defer closeStore()

		id, err := l.AddUpiID(cmd.Context(), args[0], args[1])
		if err != nil {
			fail(err, "add UPI ID")
		}
		if outputJSON {
			printJSON(id)
			return
		}
		fmt.Printf("Linked %s to %s\n", id.Handle, args[0])
	},
}

func init() {
	rootCmd.AddCommand(upiCmd)
	upiCmd.AddCommand(upiListCmd, upiAddCmd)
}
