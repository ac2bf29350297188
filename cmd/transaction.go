package cmd

import (
	"fmt"
	"os"

	"github.com/aqlanhadi/kisht/extractor/common"
	"github.com/aqlanhadi/kisht/ledger"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var transactionFlags struct {
	amount      string
	fine        string
	description string
}

var transactionCmd = &cobra.Command{
	Use:     "transaction",
	Aliases: []string{"txn"},
	Short:   "Manage a customer's payments",
}

var transactionListCmd = &cobra.Command{
	Use:   "list ACCOUNT",
	Short: "List payments, newest first",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		l, closeStore, err := openLedger(cmd.Context())
		if err != nil {
			fail(err, "open ledger")
		}
		defer closeStore()

		transactions, err := l.ListTransactions(cmd.Context(), args[0])
		if err != nil {
			fail(err, "load transactions")
		}
		if outputJSON {
			printJSON(transactions)
			return
		}
		printTransactions(transactions)
	},
}

var transactionAddCmd = &cobra.Command{
	Use:   "add ACCOUNT",
	Short: "Record a manual payment",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		amount, err := common.ParseAmount(transactionFlags.amount)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error: --amount:", err)
			exit(1)
		}
		fine := decimal.Zero
		if transactionFlags.fine != "" {
			if fine, err = common.ParseAmount(transactionFlags.fine); err != nil {
				fmt.Fprintln(os.Stderr, "error: --fine:", err)
				exit(1)
			}
		}

		l, closeStore, err := openLedger(cmd.Context())
		if err != nil {
			fail(err, "open ledger")
		}
		defer closeStore()

		txn, err := l.AddTransaction(cmd.Context(), args[0], amount, fine, transactionFlags.description)
		if err != nil {
			fail(err, "add transaction")
		}
		if outputJSON {
			printJSON(txn)
			return
		}
		fmt.Printf("Recorded %s for %s, balance %s\n", money(txn.Amount), args[0], money(txn.Balance))
	},
}

var transactionFineCmd = &cobra.Command{
	Use:   "fine ACCOUNT ID",
	Short: "Set the fine on a payment",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		fine, err := common.ParseAmount(transactionFlags.fine)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error: --fine:", err)
			exit(1)
		}

		l, closeStore, err := openLedger(cmd.Context())
		if err != nil {
			fail(err, "open ledger")
		}
		defer closeStore()

		if err := l.SetTransactionFine(cmd.Context(), args[0], args[1], fine); err != nil {
			fail(err, "update fine")
		}
		fmt.Printf("Fine on %s set to %s\n", args[1], money(fine))
	},
}

var transactionDeleteCmd = &cobra.Command{
	Use:   "delete ACCOUNT ID",
	Short: "Delete a payment and take it off the amount paid",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		l, closeStore, err := openLedger(cmd.Context())
		if err != nil {
			fail(err, "open ledger")
		}
		defer closeStore()

		if err := l.DeleteTransaction(cmd.Context(), args[0], args[1]); err != nil {
			fail(err, "delete transaction")
		}
		fmt.Printf("Deleted transaction %s\n", args[1])
	},
}

func printTransactions(transactions []ledger.Transaction) {
	if len(transactions) == 0 {
		fmt.Println("No transactions")
		return
	}
	w := newTable()
	fmt.Fprintln(w, "ID\tDATE\tAMOUNT\tFINE\tBALANCE\tREFERENCE\tDESCRIPTION")
	for _, t := range transactions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, day(t.Date), money(t.Amount), money(t.Fine), money(t.Balance), t.BankReference, t.Description)
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(transactionCmd)
	transactionCmd.AddCommand(transactionListCmd, transactionAddCmd, transactionFineCmd, transactionDeleteCmd)

	transactionAddCmd.Flags().StringVar(&transactionFlags.amount, "amount", "", "amount paid")
	transactionAddCmd.Flags().StringVar(&transactionFlags.fine, "fine", "", "fine charged with the payment")
	transactionAddCmd.Flags().StringVar(&transactionFlags.description, "description", "", "note stored with the payment")
	transactionAddCmd.MarkFlagRequired("amount")

	transactionFineCmd.Flags().StringVar(&transactionFlags.fine, "fine", "", "fine amount")
	transactionFineCmd.MarkFlagRequired("fine")
}
