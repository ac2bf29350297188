// Package installment computes how far behind a customer is on a daily
// installment schedule.
package installment

import (
	"time"

	"github.com/aqlanhadi/kisht/extractor/common"
	"github.com/shopspring/decimal"
)

// PendingStatus is the overdue position of one customer on a given day.
// Dates are calendar dates pinned to midnight UTC.
type PendingStatus struct {
	NextDueDate        time.Time       `json:"next_due_date"`
	DaysOverdue        int64           `json:"days_overdue"`
	PaidInstallments   int64           `json:"paid_installments"`
	InstallmentsDue    int64           `json:"installments_due"`
	CumulativeDue      decimal.Decimal `json:"cumulative_due"`
	AmountOverdue      decimal.Decimal `json:"amount_overdue"`
	UnclampedOverdue   decimal.Decimal `json:"unclamped_overdue"`
	Remaining          decimal.Decimal `json:"remaining"`
	PartialPaymentLeft decimal.Decimal `json:"partial_payment_left"`
}

// ComputePendingStatus returns the customer's overdue position on today, or
// false when nothing is due. openingDate and today must be calendar dates as
// returned by common.DateOf.
func ComputePendingStatus(openingDate time.Time, installmentAmount, amountPaid, totalAmount decimal.Decimal, today time.Time) (*PendingStatus, bool) {
	if !installmentAmount.IsPositive() {
		return nil, false
	}
	if IsComplete(totalAmount, amountPaid) {
		return nil, false
	}

	paidCount := amountPaid.Div(installmentAmount).Floor()
	if paidCount.IsNegative() {
		paidCount = decimal.Zero
	}
	paidInstallments := paidCount.IntPart()

	nextDue := openingDate.AddDate(0, 0, int(paidInstallments))
	if nextDue.After(today) {
		return nil, false
	}

	daysSinceOpening := common.DaysBetween(openingDate, today)
	var installmentsDue int64
	if daysSinceOpening >= 0 {
		installmentsDue = daysSinceOpening + 1
	}

	cumulativeDue := decimal.NewFromInt(installmentsDue).Mul(installmentAmount)
	remaining := Remaining(totalAmount, amountPaid)

	unclamped := decimal.Max(decimal.Zero, cumulativeDue.Sub(amountPaid))
	overdue := decimal.Min(unclamped, remaining)
	if common.Round2(overdue).IsZero() {
		return nil, false
	}

	partialLeft := installmentAmount
	if covered := amountPaid.Sub(paidCount.Mul(installmentAmount)); covered.IsPositive() {
		partialLeft = installmentAmount.Sub(covered)
	}
	partialLeft = decimal.Min(partialLeft, remaining)

	return &PendingStatus{
		NextDueDate:        nextDue,
		DaysOverdue:        common.DaysBetween(nextDue, today),
		PaidInstallments:   paidInstallments,
		InstallmentsDue:    installmentsDue,
		CumulativeDue:      common.Round2(cumulativeDue),
		AmountOverdue:      common.Round2(overdue),
		UnclampedOverdue:   common.Round2(unclamped),
		Remaining:          common.Round2(remaining),
		PartialPaymentLeft: common.Round2(partialLeft),
	}, true
}

// Remaining is the outstanding balance, never negative
func Remaining(total, paid decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, total.Sub(paid))
}

// Progress is the paid fraction of the total, in [0, 1]
func Progress(total, paid decimal.Decimal) float64 {
	if !total.IsPositive() {
		return 0
	}
	ratio := paid.Div(total).InexactFloat64()
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}

// IsComplete reports whether the loan has been paid off
func IsComplete(total, paid decimal.Decimal) bool {
	return paid.GreaterThanOrEqual(total)
}
