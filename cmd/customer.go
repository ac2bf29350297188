package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/aqlanhadi/kisht/extractor/common"
	"github.com/aqlanhadi/kisht/ledger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var customerFlags struct {
	account     string
	name        string
	phone       string
	vehicle     string
	opening     string
	closing     string
	installment string
	total       string
	upi         string
}

var customerCmd = &cobra.Command{
	Use:   "customer",
	Short: "Manage customers",
}

var customerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List customers",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		l, closeStore, err := openLedger(cmd.Context())
		if err != nil {
			fail(err, "open ledger")
		}
		defer closeStore()

		customers, err := l.ListCustomers(cmd.Context())
		if err != nil {
			fail(err, "load customers")
		}
		if outputJSON {
			printJSON(customers)
			return
		}

		w := newTable()
		fmt.Fprintln(w, "ACCOUNT\tNAME\tPHONE\tVEHICLE\tOPENED\tINSTALLMENT\tTOTAL\tPAID\tPROGRESS\tSTATUS")
		for _, c := range customers {
			status := "active"
			if c.IsComplete() {
				status = "paid off"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%.0f%%\t%s\n",
				c.AccountNumber, c.Name, c.PhoneNo, c.VehicleNo, day(c.OpeningDate),
				money(c.InstallmentAmount), money(c.TotalAmount), money(c.AmountPaid), c.Progress()*100, status)
		}
		w.Flush()
	},
}

var customerShowCmd = &cobra.Command{
	Use:   "show ACCOUNT",
	Short: "Show a customer with their payments and UPI IDs",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		l, closeStore, err := openLedger(cmd.Context())
		if err != nil {
			fail(err, "open ledger")
		}
		defer closeStore()

		customer, err := l.GetCustomer(cmd.Context(), args[0])
		if err != nil {
			fail(err, "load customer")
		}
		transactions, err := l.ListTransactions(cmd.Context(), args[0])
		if err != nil {
			fail(err, "load transactions")
		}
		ids, err := l.ListUpiIDs(cmd.Context(), args[0])
		if err != nil {
			fail(err, "load UPI IDs")
		}

		if outputJSON {
			printJSON(map[string]any{
				"customer":     customer,
				"transactions": transactions,
				"upi_ids":      ids,
			})
			return
		}

		fmt.Printf("%s  %s\n", customer.AccountNumber, customer.Name)
		fmt.Printf("Phone:       %s\n", customer.PhoneNo)
		fmt.Printf("Vehicle:     %s\n", customer.VehicleNo)
		fmt.Printf("Opened:      %s\n", day(customer.OpeningDate))
		if customer.ClosingDate != nil {
			fmt.Printf("Closing:     %s\n", day(*customer.ClosingDate))
		}
		fmt.Printf("Installment: %s\n", money(customer.InstallmentAmount))
		fmt.Printf("Total:       %s\n", money(customer.TotalAmount))
		fmt.Printf("Paid:        %s (%.0f%%)\n", money(customer.AmountPaid), customer.Progress()*100)
		fmt.Printf("Remaining:   %s\n", money(customer.Remaining()))
		for _, id := range ids {
			fmt.Printf("UPI:         %s\n", id.Handle)
		}
		fmt.Println()
		printTransactions(transactions)
	},
}

var customerAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a customer",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		l, closeStore, err := openLedger(cmd.Context())
		if err != nil {
			fail(err, "open ledger")
		}
		defer closeStore()

		customer, _, err := customerFromFlags(cmd.Flags(), l.Location())
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			exit(1)
		}
		customer.AccountNumber = customerFlags.account

		created, err := l.AddCustomer(cmd.Context(), customer, customerFlags.upi)
		if err != nil {
			fail(err, "add customer")
		}
		if outputJSON {
			printJSON(created)
			return
		}
		fmt.Printf("Added customer %s\n", created.AccountNumber)
	},
}

var customerUpdateCmd = &cobra.Command{
	Use:   "update ACCOUNT",
	Short: "Change a customer's details",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		l, closeStore, err := openLedger(cmd.Context())
		if err != nil {
			fail(err, "open ledger")
		}
		defer closeStore()

		customer, mask, err := customerFromFlags(cmd.Flags(), l.Location())
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			exit(1)
		}
		if len(mask) == 0 {
			fmt.Fprintln(os.Stderr, "error: nothing to update")
			exit(1)
		}
		customer.AccountNumber = args[0]

		if err := l.UpdateCustomer(cmd.Context(), customer, mask); err != nil {
			fail(err, "update customer")
		}
		fmt.Printf("Updated customer %s\n", args[0])
	},
}

var customerDeleteCmd = &cobra.Command{
	Use:   "delete ACCOUNT",
	Short: "Delete a customer (payments and UPI IDs are kept)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		l, closeStore, err := openLedger(cmd.Context())
		if err != nil {
			fail(err, "open ledger")
		}
		defer closeStore()

		if err := l.DeleteCustomer(cmd.Context(), args[0]); err != nil {
			fail(err, "delete customer")
		}
		fmt.Printf("Deleted customer %s\n", args[0])
	},
}

// customerFromFlags reads the customer flags and returns the mask of fields
// that were set
func customerFromFlags(flags *pflag.FlagSet, loc *time.Location) (ledger.Customer, []string, error) {
	var (
		c    ledger.Customer
		mask []string
	)

	if flags.Changed("name") {
		c.Name = customerFlags.name
		mask = append(mask, ledger.FieldName)
	}
	if flags.Changed("phone") {
		c.PhoneNo = customerFlags.phone
		mask = append(mask, ledger.FieldPhoneNo)
	}
	if flags.Changed("vehicle") {
		c.VehicleNo = customerFlags.vehicle
		mask = append(mask, ledger.FieldVehicleNo)
	}
	if flags.Changed("opening") {
		t, err := common.ParseTimestamp(customerFlags.opening, loc)
		if err != nil {
			return c, nil, fmt.Errorf("--opening: %w", err)
		}
		c.OpeningDate = t
		mask = append(mask, ledger.FieldOpeningDate)
	}
	if flags.Changed("closing") {
		if customerFlags.closing != "" {
			t, err := common.ParseTimestamp(customerFlags.closing, loc)
			if err != nil {
				return c, nil, fmt.Errorf("--closing: %w", err)
			}
			c.ClosingDate = &t
		}
		mask = append(mask, ledger.FieldClosingDate)
	}
	if flags.Changed("installment") {
		d, err := common.ParseAmount(customerFlags.installment)
		if err != nil {
			return c, nil, fmt.Errorf("--installment: %w", err)
		}
		c.InstallmentAmount = d
		mask = append(mask, ledger.FieldInstallmentAmount)
	}
	if flags.Changed("total") {
		d, err := common.ParseAmount(customerFlags.total)
		if err != nil {
			return c, nil, fmt.Errorf("--total: %w", err)
		}
		c.TotalAmount = d
		mask = append(mask, ledger.FieldTotalAmount)
	}
	return c, mask, nil
}

func addCustomerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&customerFlags.name, "name", "", "customer name")
	cmd.Flags().StringVar(&customerFlags.phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&customerFlags.vehicle, "vehicle", "", "vehicle number")
	cmd.Flags().StringVar(&customerFlags.opening, "opening", "", "opening date (YYYY-MM-DD), defaults to now")
	cmd.Flags().StringVar(&customerFlags.closing, "closing", "", "closing date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&customerFlags.installment, "installment", "", "daily installment amount")
	cmd.Flags().StringVar(&customerFlags.total, "total", "", "total amount owed")
}

func init() {
	rootCmd.AddCommand(customerCmd)
	customerCmd.AddCommand(customerListCmd, customerShowCmd, customerAddCmd, customerUpdateCmd, customerDeleteCmd)

	addCustomerFlags(customerAddCmd)
	customerAddCmd.Flags().StringVar(&customerFlags.account, "account", "", "account number")
	customerAddCmd.Flags().StringVar(&customerFlags.upi, "upi", "", "UPI ID to link")
	customerAddCmd.MarkFlagRequired("account")
	customerAddCmd.MarkFlagRequired("name")
	customerAddCmd.MarkFlagRequired("installment")

	addCustomerFlags(customerUpdateCmd)
}

