package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/aqlanhadi/kisht/store"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var (
	ErrCustomerExists  = errors.New("customer already exists")
	ErrInvalidCustomer = errors.New("invalid customer")
)

// Fields accepted in an UpdateCustomer mask. Accno is the document key and
// amountPaid only moves with transactions.
const (
	FieldName              = fieldName
	FieldPhoneNo           = fieldPhoneNo
	FieldVehicleNo         = fieldVehicleNo
	FieldOpeningDate       = fieldOpeningDate
	FieldClosingDate       = fieldClosingDate
	FieldInstallmentAmount = fieldInstallmentAmount
	FieldTotalAmount       = fieldTotalAmount
)

var customerUpdateFields = []string{
	FieldName,
	FieldPhoneNo,
	FieldVehicleNo,
	FieldOpeningDate,
	FieldClosingDate,
	FieldInstallmentAmount,
	FieldTotalAmount,
}

// EnsureUser creates the user document on first use and refreshes its
// lastActive stamp afterwards
func (l *Ledger) EnsureUser(ctx context.Context) error {
	now := l.now()

	_, err := l.store.Get(ctx, l.userPath())
	if err == nil {
		if err := l.store.Patch(ctx, l.userPath(), store.Fields{fieldLastActive: now}, []string{fieldLastActive}); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to check user: %w", err)
	}

	err = l.store.Commit(ctx, []store.Write{{
		Path: l.userPath(),
		Fields: store.Fields{
			fieldUserID:     l.userID,
			fieldCreatedAt:  now,
			fieldLastActive: now,
		},
		Precondition: store.MustNotExist,
	}})
	if err != nil && !errors.Is(err, store.ErrPreconditionFailed) {
		return fmt.Errorf("failed to create user: %w", err)
	}
	log.WithField("user", l.userID).Debug("user document ready")
	return nil
}

// ListCustomers returns every customer ordered by account number
func (l *Ledger) ListCustomers(ctx context.Context) ([]Customer, error) {
	if err := l.EnsureUser(ctx); err != nil {
		return nil, err
	}

	docs, err := l.store.Query(ctx, l.customersPath(), nil, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	customers := make([]Customer, 0, len(docs))
	for _, doc := range docs {
		customers = append(customers, customerFromDocument(doc))
	}
	sort.Slice(customers, func(i, j int) bool {
		return customers[i].AccountNumber < customers[j].AccountNumber
	})
	return customers, nil
}

// GetCustomer reads one customer. A missing customer wraps store.ErrNotFound.
func (l *Ledger) GetCustomer(ctx context.Context, accountNumber string) (*Customer, error) {
	if err := checkAccountNumber(accountNumber); err != nil {
		return nil, err
	}
	doc, err := l.store.Get(ctx, l.customerPath(accountNumber))
	if err != nil {
		return nil, fmt.Errorf("failed to get customer %s: %w", accountNumber, err)
	}
	customer := customerFromDocument(*doc)
	return &customer, nil
}

// AddCustomer creates a customer and, when upiHandle is given, links it in
// the same commit. Nothing is written if either already exists.
func (l *Ledger) AddCustomer(ctx context.Context, customer Customer, upiHandle string) (*Customer, error) {
	customer.AccountNumber = strings.TrimSpace(customer.AccountNumber)
	customer.Name = strings.TrimSpace(customer.Name)
	if err := validateCustomer(customer); err != nil {
		return nil, err
	}

	handle := ""
	if strings.TrimSpace(upiHandle) != "" {
		var err error
		if handle, err = NormalizeHandle(upiHandle); err != nil {
			return nil, err
		}
	}

	if customer.OpeningDate.IsZero() {
		customer.OpeningDate = l.now()
	}
	customer.AmountPaid = decimal.Zero

	if err := l.EnsureUser(ctx); err != nil {
		return nil, err
	}

	writes := []store.Write{{
		Path:         l.customerPath(customer.AccountNumber),
		Fields:       customer.fields(),
		Precondition: store.MustNotExist,
	}}
	if handle != "" {
		writes = append(writes, l.upiWrites(customer.AccountNumber, handle, l.now())...)
	}

	err := l.store.Commit(ctx, writes)
	if errors.Is(err, store.ErrPreconditionFailed) {
		if _, getErr := l.store.Get(ctx, l.customerPath(customer.AccountNumber)); getErr == nil {
			return nil, fmt.Errorf("%w: %s", ErrCustomerExists, customer.AccountNumber)
		}
		return nil, fmt.Errorf("%w: %s", ErrUpiExists, handle)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add customer: %w", err)
	}

	log.WithFields(log.Fields{"account": customer.AccountNumber, "handle": handle}).Info("customer added")
	return &customer, nil
}

// UpdateCustomer overwrites the given fields of an existing customer. An
// empty mask updates every editable field.
func (l *Ledger) UpdateCustomer(ctx context.Context, customer Customer, mask []string) error {
	if err := checkAccountNumber(customer.AccountNumber); err != nil {
		return err
	}
	if len(mask) == 0 {
		mask = customerUpdateFields
	}
	for _, field := range mask {
		if !slices.Contains(customerUpdateFields, field) {
			return fmt.Errorf("%w: field %s cannot be changed", ErrInvalidCustomer, field)
		}
	}
	if customer.Name == "" && slices.Contains(mask, fieldName) {
		return fmt.Errorf("%w: name is required", ErrInvalidCustomer)
	}

	err := l.store.Commit(ctx, []store.Write{{
		Path:         l.customerPath(customer.AccountNumber),
		Fields:       customer.fields(),
		Mask:         mask,
		Precondition: store.MustExist,
	}})
	if errors.Is(err, store.ErrPreconditionFailed) {
		return fmt.Errorf("customer %s: %w", customer.AccountNumber, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}
	return nil
}

// DeleteCustomer removes the customer document. Its transactions and UPI
// links are left in place.
func (l *Ledger) DeleteCustomer(ctx context.Context, accountNumber string) error {
	if err := checkAccountNumber(accountNumber); err != nil {
		return err
	}
	err := l.store.Commit(ctx, []store.Write{{
		Path:         l.customerPath(accountNumber),
		Precondition: store.MustExist,
	}})
	if errors.Is(err, store.ErrPreconditionFailed) {
		return fmt.Errorf("customer %s: %w", accountNumber, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	log.WithField("account", accountNumber).Info("customer deleted")
	return nil
}

func validateCustomer(c Customer) error {
	if err := checkAccountNumber(c.AccountNumber); err != nil {
		return err
	}
	switch {
	case c.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidCustomer)
	case !c.InstallmentAmount.IsPositive():
		return fmt.Errorf("%w: installment amount must be positive", ErrInvalidCustomer)
	case c.TotalAmount.IsNegative():
		return fmt.Errorf("%w: total amount cannot be negative", ErrInvalidCustomer)
	}
	return nil
}
