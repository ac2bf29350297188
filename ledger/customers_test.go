package ledger

import (
	"testing"
	"time"

	"github.com/aqlanhadi/kisht/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureUser(t *testing.T) {
	l, s := newTestLedger(t)

	require.NoError(t, l.EnsureUser(t.Context()))
	doc, err := s.Get(t.Context(), "users/operator")
	require.NoError(t, err)
	created, ok := doc.Fields.Time(fieldCreatedAt)
	require.True(t, ok)
	assert.Equal(t, "operator", doc.Fields.String(fieldUserID))

	require.NoError(t, l.EnsureUser(t.Context()))
	doc, err = s.Get(t.Context(), "users/operator")
	require.NoError(t, err)
	lastActive, ok := doc.Fields.Time(fieldLastActive)
	require.True(t, ok)
	assert.True(t, lastActive.After(created))
	again, _ := doc.Fields.Time(fieldCreatedAt)
	assert.Equal(t, created, again)
}

func TestAddCustomer(t *testing.T) {
	l, s := newTestLedger(t)

	customer, err := l.AddCustomer(t.Context(), Customer{
		AccountNumber:     " A-100 ",
		Name:              " Ravi ",
		PhoneNo:           "9876543210",
		VehicleNo:         "KA01AB1234",
		InstallmentAmount: decimal.NewFromInt(200),
		TotalAmount:       decimal.NewFromInt(10000),
		AmountPaid:        decimal.NewFromInt(999),
	}, "Ravi@OKAXIS")
	require.NoError(t, err)

	assert.Equal(t, "A-100", customer.AccountNumber)
	assert.Equal(t, "Ravi", customer.Name)
	assert.True(t, customer.AmountPaid.IsZero())
	assert.False(t, customer.OpeningDate.IsZero())

	doc, err := s.Get(t.Context(), "users/operator/customer/A-100")
	require.NoError(t, err)
	assert.Equal(t, "A-100", doc.Fields.String(fieldAccno))
	assert.Equal(t, 10000.0, doc.Fields.Float(fieldTotalAmount))
	assert.Equal(t, 200.0, doc.Fields.Float(fieldInstallmentAmount))
	assert.True(t, doc.Fields.Has(fieldClosingDate))

	account, found, err := l.ResolveHandle(t.Context(), "ravi@okaxis")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "A-100", account)
}

func TestAddCustomer_Conflicts(t *testing.T) {
	l, _ := newTestLedger(t)
	mustAddCustomer(t, l, "C1", "alice@okaxis", 100, 5000)

	_, err := l.AddCustomer(t.Context(), Customer{
		AccountNumber:     "C1",
		Name:              "Someone else",
		InstallmentAmount: decimal.NewFromInt(100),
	}, "")
	assert.ErrorIs(t, err, ErrCustomerExists)

	_, err = l.AddCustomer(t.Context(), Customer{
		AccountNumber:     "C2",
		Name:              "Bob",
		InstallmentAmount: decimal.NewFromInt(100),
	}, "ALICE@okaxis")
	assert.ErrorIs(t, err, ErrUpiExists)

	_, err = l.GetCustomer(t.Context(), "C2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAddCustomer_Validation(t *testing.T) {
	l, _ := newTestLedger(t)

	tests := []struct {
		name     string
		customer Customer
		handle   string
	}{
		{"missing account", Customer{Name: "A", InstallmentAmount: decimal.NewFromInt(1)}, ""},
		{"slash in account", Customer{AccountNumber: "a/b", Name: "A", InstallmentAmount: decimal.NewFromInt(1)}, ""},
		{"missing name", Customer{AccountNumber: "C1", InstallmentAmount: decimal.NewFromInt(1)}, ""},
		{"zero installment", Customer{AccountNumber: "C1", Name: "A"}, ""},
		{"negative total", Customer{AccountNumber: "C1", Name: "A", InstallmentAmount: decimal.NewFromInt(1), TotalAmount: decimal.NewFromInt(-1)}, ""},
		{"bad handle", Customer{AccountNumber: "C1", Name: "A", InstallmentAmount: decimal.NewFromInt(1)}, "a/b@x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.AddCustomer(t.Context(), tt.customer, tt.handle)
			assert.Error(t, err)
		})
	}
}

func TestListCustomers_SortedByAccount(t *testing.T) {
	l, _ := newTestLedger(t)
	mustAddCustomer(t, l, "C3", "", 100, 1000)
	mustAddCustomer(t, l, "C1", "", 100, 1000)
	mustAddCustomer(t, l, "C2", "", 100, 1000)

	customers, err := l.ListCustomers(t.Context())
	require.NoError(t, err)

	require.Len(t, customers, 3)
	assert.Equal(t, "C1", customers[0].AccountNumber)
	assert.Equal(t, "C2", customers[1].AccountNumber)
	assert.Equal(t, "C3", customers[2].AccountNumber)
}

func TestUpdateCustomer(t *testing.T) {
	l, _ := newTestLedger(t)
	mustAddCustomer(t, l, "C1", "", 100, 1000)

	closing := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	err := l.UpdateCustomer(t.Context(), Customer{
		AccountNumber: "C1",
		Name:          "Renamed",
		ClosingDate:   &closing,
	}, []string{fieldName, fieldClosingDate})
	require.NoError(t, err)

	customer := mustGetCustomer(t, l, "C1")
	assert.Equal(t, "Renamed", customer.Name)
	require.NotNil(t, customer.ClosingDate)
	assert.True(t, closing.Equal(*customer.ClosingDate))
	assert.Equal(t, "100", customer.InstallmentAmount.String())

	err = l.UpdateCustomer(t.Context(), Customer{AccountNumber: "C1"}, []string{fieldAmountPaid})
	assert.ErrorIs(t, err, ErrInvalidCustomer)

	err = l.UpdateCustomer(t.Context(), Customer{AccountNumber: "C1"}, []string{fieldName})
	assert.ErrorIs(t, err, ErrInvalidCustomer)

	err = l.UpdateCustomer(t.Context(), Customer{AccountNumber: "missing", Name: "X"}, []string{fieldName})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteCustomer(t *testing.T) {
	l, _ := newTestLedger(t)
	mustAddCustomer(t, l, "C1", "alice@okaxis", 100, 1000)

	require.NoError(t, l.DeleteCustomer(t.Context(), "C1"))

	_, err := l.GetCustomer(t.Context(), "C1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, l.DeleteCustomer(t.Context(), "C1"), store.ErrNotFound)

	// the UPI link outlives the customer
	account, found, err := l.ResolveHandle(t.Context(), "alice@okaxis")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "C1", account)
}

func TestCustomer_Progress(t *testing.T) {
	c := Customer{TotalAmount: decimal.NewFromInt(1000), AmountPaid: decimal.NewFromInt(250)}

	assert.Equal(t, "750", c.Remaining().String())
	assert.InDelta(t, 0.25, c.Progress(), 1e-9)
	assert.False(t, c.IsComplete())

	c.AmountPaid = decimal.NewFromInt(1200)
	assert.True(t, c.IsComplete())
	assert.True(t, c.Remaining().IsZero())
}
