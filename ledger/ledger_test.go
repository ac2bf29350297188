package ledger

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aqlanhadi/kisht/integrations/memory"
	"github.com/aqlanhadi/kisht/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var startOfTest = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T) (*Ledger, *memory.Store) {
	t.Helper()
	s := memory.New()
	return newTestLedgerOn(t, s), s
}

// newTestLedgerOn uses a clock that ticks one second per reading and
// sequential ids, so ordering in tests is deterministic.
func newTestLedgerOn(t *testing.T, s store.Store) *Ledger {
	t.Helper()
	clock := startOfTest
	ids := 0
	l, err := New(s, Options{
		UserID:   "operator",
		Location: time.UTC,
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
		NewID: func() string {
			ids++
			return fmt.Sprintf("id-%04d", ids)
		},
	})
	require.NoError(t, err)
	return l
}

func mustAddCustomer(t *testing.T, l *Ledger, accountNumber, handle string, installmentAmount, total int64) *Customer {
	t.Helper()
	customer, err := l.AddCustomer(t.Context(), Customer{
		AccountNumber:     accountNumber,
		Name:              "Customer " + accountNumber,
		OpeningDate:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		InstallmentAmount: decimal.NewFromInt(installmentAmount),
		TotalAmount:       decimal.NewFromInt(total),
	}, handle)
	require.NoError(t, err)
	return customer
}

func mustGetCustomer(t *testing.T, l *Ledger, accountNumber string) *Customer {
	t.Helper()
	customer, err := l.GetCustomer(t.Context(), accountNumber)
	require.NoError(t, err)
	return customer
}

// statementCSV lays rows out the way the bank exports them: date in the
// second column, details in the third, withdrawals in the ninth and deposits
// in the eleventh.
func statementCSV(rows ...string) string {
	var b strings.Builder
	b.WriteString("Account statement,,,,,,,,,,\n")
	b.WriteString(",Date,Transaction Details,,,,,,Withdrawals,,Deposits\n")
	for _, row := range rows {
		b.WriteString(row)
		b.WriteString("\n")
	}
	return b.String()
}

func upiCredit(reference, handle, amount string) string {
	return fmt.Sprintf(`,01/01/2024,UPI/%s/payment from/%s,,,,,,,,"%s"`, reference, handle, amount)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, Options{UserID: "operator"})
	assert.Error(t, err)

	_, err = New(memory.New(), Options{})
	assert.Error(t, err)

	l, err := New(memory.New(), Options{UserID: "operator"})
	require.NoError(t, err)
	assert.Equal(t, "operator", l.UserID())
	assert.Equal(t, time.Local, l.Location())
	assert.Equal(t, defaultUnknownPreview, l.unknownPreview)
}

func TestLedger_Today(t *testing.T) {
	l, _ := newTestLedger(t)

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), l.Today())
}
