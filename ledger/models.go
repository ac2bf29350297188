package ledger

import (
	"time"

	"github.com/aqlanhadi/kisht/extractor/common"
	"github.com/aqlanhadi/kisht/installment"
	"github.com/aqlanhadi/kisht/store"
	"github.com/shopspring/decimal"
)

// Stored field names. They match documents written by earlier clients.
const (
	fieldAccno             = "Accno"
	fieldName              = "Name"
	fieldPhoneNo           = "PhoneNo"
	fieldVehicleNo         = "VehicleNo"
	fieldOpeningDate       = "OpeningDate"
	fieldClosingDate       = "ClosingDate"
	fieldInstallmentAmount = "installmentAmount"
	fieldTotalAmount       = "Amount"
	fieldAmountPaid        = "amountPaid"

	fieldAmount              = "amount"
	fieldBalance             = "Balance"
	fieldDate                = "date"
	fieldFine                = "Fine"
	fieldTransactionType     = "transactionType"
	fieldDescription         = "description"
	fieldInstallmentsCovered = "installmentsCovered"
	fieldBankReference       = "bankReference"

	fieldUpiID      = "upiId"
	fieldCustomerID = "customerId"
	fieldIsActive   = "isActive"
	fieldCreatedAt  = "createdAt"

	fieldProcessedAt = "processedAt"

	fieldUserID     = "userId"
	fieldLastActive = "lastActive"
)

const paymentType = "payment"

// Customer is a borrower repaying a fixed amount every day
type Customer struct {
	AccountNumber     string          `json:"account_number"`
	Name              string          `json:"name"`
	PhoneNo           string          `json:"phone_no"`
	VehicleNo         string          `json:"vehicle_no"`
	OpeningDate       time.Time       `json:"opening_date"`
	ClosingDate       *time.Time      `json:"closing_date,omitempty"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	AmountPaid        decimal.Decimal `json:"amount_paid"`
}

// Remaining is the balance still owed
func (c Customer) Remaining() decimal.Decimal {
	return installment.Remaining(c.TotalAmount, c.AmountPaid)
}

// Progress is the repaid fraction of the loan
func (c Customer) Progress() float64 {
	return installment.Progress(c.TotalAmount, c.AmountPaid)
}

// IsComplete reports whether the loan is paid off
func (c Customer) IsComplete() bool {
	return installment.IsComplete(c.TotalAmount, c.AmountPaid)
}

func (c Customer) fields() store.Fields {
	fields := store.Fields{
		fieldAccno:             c.AccountNumber,
		fieldName:              c.Name,
		fieldPhoneNo:           c.PhoneNo,
		fieldVehicleNo:         c.VehicleNo,
		fieldOpeningDate:       c.OpeningDate,
		fieldClosingDate:       nil,
		fieldInstallmentAmount: money(c.InstallmentAmount),
		fieldTotalAmount:       money(c.TotalAmount),
		fieldAmountPaid:        money(c.AmountPaid),
	}
	if c.ClosingDate != nil {
		fields[fieldClosingDate] = *c.ClosingDate
	}
	return fields
}

func customerFromDocument(doc store.Document) Customer {
	f := doc.Fields
	c := Customer{
		AccountNumber:     f.String(fieldAccno),
		Name:              f.String(fieldName),
		PhoneNo:           f.String(fieldPhoneNo),
		VehicleNo:         f.String(fieldVehicleNo),
		InstallmentAmount: f.Decimal(fieldInstallmentAmount),
		TotalAmount:       f.Decimal(fieldTotalAmount),
		AmountPaid:        f.Decimal(fieldAmountPaid),
	}
	if c.AccountNumber == "" {
		c.AccountNumber = doc.ID()
	}
	if t, ok := f.Time(fieldOpeningDate); ok {
		c.OpeningDate = t
	}
	if t, ok := f.Time(fieldClosingDate); ok {
		c.ClosingDate = &t
	}
	return c
}

// Transaction is a payment recorded against a customer
type Transaction struct {
	ID                  string          `json:"id"`
	AccountNumber       string          `json:"account_number"`
	Amount              decimal.Decimal `json:"amount"`
	Balance             decimal.Decimal `json:"balance"`
	Fine                decimal.Decimal `json:"fine"`
	Date                time.Time       `json:"date"`
	Type                string          `json:"type"`
	Description         string          `json:"description,omitempty"`
	BankReference       string          `json:"bank_reference,omitempty"`
	InstallmentsCovered int64           `json:"installments_covered"`
}

func (t Transaction) fields() store.Fields {
	fields := store.Fields{
		fieldAmount:              money(t.Amount),
		fieldBalance:             money(t.Balance),
		fieldDate:                t.Date,
		fieldFine:                money(t.Fine),
		fieldTransactionType:     t.Type,
		fieldDescription:         t.Description,
		fieldInstallmentsCovered: t.InstallmentsCovered,
	}
	if t.BankReference != "" {
		fields[fieldBankReference] = t.BankReference
	}
	return fields
}

func transactionFromDocument(accountNumber string, doc store.Document) Transaction {
	f := doc.Fields
	t := Transaction{
		ID:                  doc.ID(),
		AccountNumber:       accountNumber,
		Amount:              f.Decimal(fieldAmount),
		Balance:             f.Decimal(fieldBalance),
		Fine:                f.Decimal(fieldFine),
		Type:                f.String(fieldTransactionType),
		Description:         f.String(fieldDescription),
		BankReference:       f.String(fieldBankReference),
		InstallmentsCovered: f.Int(fieldInstallmentsCovered),
	}
	if date, ok := f.Time(fieldDate); ok {
		t.Date = date
	}
	if t.Type == "" {
		t.Type = paymentType
	}
	if t.InstallmentsCovered == 0 {
		t.InstallmentsCovered = 1
	}
	return t
}

// UpiID links a UPI handle to a customer
type UpiID struct {
	ID            string    `json:"id"`
	Handle        string    `json:"upi_id"`
	AccountNumber string    `json:"account_number"`
	Active        bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

func upiIDFromDocument(doc store.Document) UpiID {
	f := doc.Fields
	u := UpiID{
		ID:            doc.ID(),
		Handle:        f.String(fieldUpiID),
		AccountNumber: f.String(fieldCustomerID),
		Active:        f.Bool(fieldIsActive),
	}
	if t, ok := f.Time(fieldCreatedAt); ok {
		u.CreatedAt = t
	}
	return u
}

// ProcessedReference marks a bank reference as already applied
type ProcessedReference struct {
	Reference     string
	AccountNumber string
	Handle        string
	Amount        decimal.Decimal
	ProcessedAt   time.Time
}

func (p ProcessedReference) fields() store.Fields {
	return store.Fields{
		fieldCustomerID:  p.AccountNumber,
		fieldUpiID:       p.Handle,
		fieldAmount:      money(p.Amount),
		fieldProcessedAt: p.ProcessedAt,
	}
}

// money is how amounts are stored: a double rounded to paise
func money(d decimal.Decimal) float64 {
	return common.Round2(d).InexactFloat64()
}
