package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aqlanhadi/kisht/store"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidTransaction = errors.New("invalid transaction")

// ListTransactions returns a customer's payments, newest first
func (l *Ledger) ListTransactions(ctx context.Context, accountNumber string) ([]Transaction, error) {
	if err := checkAccountNumber(accountNumber); err != nil {
		return nil, err
	}
	docs, err := l.store.Query(ctx, l.transactionsPath(accountNumber), nil, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	transactions := make([]Transaction, 0, len(docs))
	for _, doc := range docs {
		transactions = append(transactions, transactionFromDocument(accountNumber, doc))
	}
	sort.SliceStable(transactions, func(i, j int) bool {
		if !transactions[i].Date.Equal(transactions[j].Date) {
			return transactions[i].Date.After(transactions[j].Date)
		}
		return transactions[i].ID < transactions[j].ID
	})
	return transactions, nil
}

// AddTransaction records a manual payment and raises the customer's paid
// amount in the same commit
func (l *Ledger) AddTransaction(ctx context.Context, accountNumber string, amount, fine decimal.Decimal, description string) (*Transaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidTransaction)
	}
	if fine.IsNegative() {
		return nil, fmt.Errorf("%w: fine cannot be negative", ErrInvalidTransaction)
	}
	if err := checkAccountNumber(accountNumber); err != nil {
		return nil, err
	}

	customer, err := l.GetCustomer(ctx, accountNumber)
	if err != nil {
		return nil, err
	}

	txn := l.newPayment(*customer, amount, strings.TrimSpace(description), "")
	txn.Fine = fine

	err = l.store.Commit(ctx, []store.Write{
		{
			Path:         l.transactionPath(accountNumber, txn.ID),
			Fields:       txn.fields(),
			Precondition: store.MustNotExist,
		},
		l.amountPaidWrite(accountNumber, customer.AmountPaid.Add(amount)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add transaction: %w", err)
	}

	log.WithFields(log.Fields{"account": accountNumber, "amount": amount.StringFixed(2)}).Info("transaction added")
	return &txn, nil
}

// SetTransactionFine replaces the fine on an existing transaction
func (l *Ledger) SetTransactionFine(ctx context.Context, accountNumber, id string, fine decimal.Decimal) error {
	if fine.IsNegative() {
		return fmt.Errorf("%w: fine cannot be negative", ErrInvalidTransaction)
	}
	if err := checkAccountNumber(accountNumber); err != nil {
		return err
	}
	if err := checkTransactionID(id); err != nil {
		return err
	}

	err := l.store.Commit(ctx, []store.Write{{
		Path:         l.transactionPath(accountNumber, id),
		Fields:       store.Fields{fieldFine: money(fine)},
		Mask:         []string{fieldFine},
		Precondition: store.MustExist,
	}})
	if errors.Is(err, store.ErrPreconditionFailed) {
		return fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update fine: %w", err)
	}
	return nil
}

// DeleteTransaction removes a payment and takes its amount back off the
// customer's paid amount, never below zero
func (l *Ledger) DeleteTransaction(ctx context.Context, accountNumber, id string) error {
	if err := checkAccountNumber(accountNumber); err != nil {
		return err
	}
	if err := checkTransactionID(id); err != nil {
		return err
	}
	doc, err := l.store.Get(ctx, l.transactionPath(accountNumber, id))
	if err != nil {
		return fmt.Errorf("failed to get transaction %s: %w", id, err)
	}
	txn := transactionFromDocument(accountNumber, *doc)

	customer, err := l.GetCustomer(ctx, accountNumber)
	if err != nil {
		return err
	}

	paid := decimal.Max(decimal.Zero, customer.AmountPaid.Sub(txn.Amount))
	err = l.store.Commit(ctx, []store.Write{
		{Path: l.transactionPath(accountNumber, id), Precondition: store.MustExist},
		l.amountPaidWrite(accountNumber, paid),
	})
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	log.WithFields(log.Fields{"account": accountNumber, "transaction": id}).Info("transaction deleted")
	return nil
}

// newPayment builds a payment against the customer's current state. Balance
// is what remains owed after it.
func (l *Ledger) newPayment(customer Customer, amount decimal.Decimal, description, reference string) Transaction {
	return Transaction{
		ID:                  l.newID(),
		AccountNumber:       customer.AccountNumber,
		Amount:              amount,
		Balance:             customer.TotalAmount.Sub(customer.AmountPaid).Sub(amount),
		Fine:                decimal.Zero,
		Date:                l.now(),
		Type:                paymentType,
		Description:         description,
		BankReference:       reference,
		InstallmentsCovered: 1,
	}
}

func (l *Ledger) amountPaidWrite(accountNumber string, paid decimal.Decimal) store.Write {
	return store.Write{
		Path:         l.customerPath(accountNumber),
		Fields:       store.Fields{fieldAmountPaid: money(paid)},
		Mask:         []string{fieldAmountPaid},
		Precondition: store.MustExist,
	}
}
