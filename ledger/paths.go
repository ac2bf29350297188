package ledger

import (
	"fmt"
	"strings"

	"github.com/aqlanhadi/kisht/store"
)

const (
	usersCollection         = "users"
	customerCollection      = "customer"
	transactionsCollection  = "transactions"
	upiIDsCollection        = "upiIds"
	uniqueUpiIDsCollection  = "uniqueUpiIds"
	processedRefsCollection = "processedBankRefs"
)

// Account numbers and transaction ids become single path segments
func checkAccountNumber(accountNumber string) error {
	switch {
	case strings.TrimSpace(accountNumber) == "":
		return fmt.Errorf("%w: account number is required", ErrInvalidCustomer)
	case strings.Contains(accountNumber, "/"):
		return fmt.Errorf("%w: account number cannot contain '/'", ErrInvalidCustomer)
	}
	return nil
}

func checkTransactionID(id string) error {
	if strings.TrimSpace(id) == "" || strings.Contains(id, "/") {
		return fmt.Errorf("%w: bad transaction id %q", ErrInvalidTransaction, id)
	}
	return nil
}

func (l *Ledger) userPath() string {
	return store.Join(usersCollection, l.userID)
}

func (l *Ledger) customersPath() string {
	return store.Join(l.userPath(), customerCollection)
}

func (l *Ledger) customerPath(accountNumber string) string {
	return store.Join(l.customersPath(), accountNumber)
}

func (l *Ledger) transactionsPath(accountNumber string) string {
	return store.Join(l.customerPath(accountNumber), transactionsCollection)
}

func (l *Ledger) transactionPath(accountNumber, id string) string {
	return store.Join(l.transactionsPath(accountNumber), id)
}

func (l *Ledger) upiIDsPath() string {
	return store.Join(l.userPath(), upiIDsCollection)
}

func (l *Ledger) uniqueUpiIDPath(handle string) string {
	return store.Join(l.userPath(), uniqueUpiIDsCollection, handle)
}

func (l *Ledger) processedRefPath(reference string) string {
	return store.Join(l.userPath(), processedRefsCollection, reference)
}
