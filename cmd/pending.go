package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var pendingToday string

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List customers behind on their installments",
	Run: func(cmd *cobra.Command, args []string) {
		var today time.Time
		if pendingToday != "" {
			t, err := time.Parse("2006-01-02", pendingToday)
			if err != nil {
				fmt.Fprintln(os.Stderr, "error: --today must be YYYY-MM-DD")
				exit(1)
			}
			today = t
		}

		l, closeStore, err := openLedger(cmd.Context())
		if err != nil {
			fail(err, "open ledger")
		}
		defer closeStore()

		pending, err := l.PendingCustomers(cmd.Context(), today)
		if err != nil {
			fail(err, "load pending installments")
		}

		if outputJSON {
			printJSON(pending)
			return
		}

		w := newTable()
		fmt.Fprintln(w, "ACCOUNT\tNAME\tNEXT DUE\tDAYS OVERDUE\tOVERDUE\tPARTIAL LEFT\tREMAINING")
		for _, p := range pending {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
				p.Customer.AccountNumber,
				p.Customer.Name,
				day(p.Status.NextDueDate),
				p.Status.DaysOverdue,
				money(p.Status.AmountOverdue),
				money(p.Status.PartialPaymentLeft),
				money(p.Status.Remaining),
			)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(pendingCmd)
	pendingCmd.Flags().StringVar(&pendingToday, "today", "", "evaluate as of this date (YYYY-MM-DD)")
}
