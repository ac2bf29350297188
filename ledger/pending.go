package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/aqlanhadi/kisht/extractor/common"
	"github.com/aqlanhadi/kisht/installment"
	log "github.com/sirupsen/logrus"
)

// PendingCustomer is a customer who is behind on installments
type PendingCustomer struct {
	Customer Customer                  `json:"customer"`
	Status   installment.PendingStatus `json:"status"`
}

// PendingCustomers returns every customer with an overdue amount on today,
// most days overdue first. A zero today means the current date.
func (l *Ledger) PendingCustomers(ctx context.Context, today time.Time) ([]PendingCustomer, error) {
	if today.IsZero() {
		today = l.Today()
	} else {
		y, m, d := today.Date()
		today = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	customers, err := l.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}

	pending := []PendingCustomer{}
	for _, customer := range customers {
		logger := log.WithField("account", customer.AccountNumber)
		if customer.OpeningDate.IsZero() {
			logger.Debug("skipping customer without opening date")
			continue
		}
		if !customer.InstallmentAmount.IsPositive() {
			logger.Debug("skipping customer without installment amount")
			continue
		}

		opening := common.DateOf(customer.OpeningDate, l.loc)
		status, ok := installment.ComputePendingStatus(opening, customer.InstallmentAmount, customer.AmountPaid, customer.TotalAmount, today)
		if !ok {
			continue
		}
		pending = append(pending, PendingCustomer{Customer: customer, Status: *status})
	}

	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].Status.DaysOverdue != pending[j].Status.DaysOverdue {
			return pending[i].Status.DaysOverdue > pending[j].Status.DaysOverdue
		}
		return pending[i].Customer.AccountNumber < pending[j].Customer.AccountNumber
	})
	return pending, nil
}
