package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aqlanhadi/kisht/store"
	log "github.com/sirupsen/logrus"
)

var (
	ErrUpiExists        = errors.New("UPI ID already exists")
	ErrInvalidUpiHandle = errors.New("invalid UPI ID")
)

// NormalizeHandle trims and lower-cases a UPI handle. Handles become document
// ids, so blanks and slashes are rejected.
func NormalizeHandle(handle string) (string, error) {
	handle = strings.ToLower(strings.TrimSpace(handle))
	if handle == "" {
		return "", fmt.Errorf("%w: handle is blank", ErrInvalidUpiHandle)
	}
	if strings.Contains(handle, "/") {
		return "", fmt.Errorf("%w: %q contains '/'", ErrInvalidUpiHandle, handle)
	}
	return handle, nil
}

// upiWrites creates the link document and its uniqueness index together
func (l *Ledger) upiWrites(accountNumber, handle string, now time.Time) []store.Write {
	return []store.Write{
		{
			Path: store.Join(l.upiIDsPath(), l.newID()),
			Fields: store.Fields{
				fieldUpiID:      handle,
				fieldCustomerID: accountNumber,
				fieldIsActive:   true,
				fieldCreatedAt:  now,
			},
			Precondition: store.MustNotExist,
		},
		{
			Path:         l.uniqueUpiIDPath(handle),
			Fields:       store.Fields{fieldCustomerID: accountNumber},
			Precondition: store.MustNotExist,
		},
	}
}

// AddUpiID links a handle to an existing customer. A handle can belong to
// one customer only.
func (l *Ledger) AddUpiID(ctx context.Context, accountNumber, handle string) (*UpiID, error) {
	if err := checkAccountNumber(accountNumber); err != nil {
		return nil, err
	}
	normalized, err := NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}
	if _, err := l.GetCustomer(ctx, accountNumber); err != nil {
		return nil, err
	}

	now := l.now()
	writes := l.upiWrites(accountNumber, normalized, now)
	err = l.store.Commit(ctx, writes)
	if errors.Is(err, store.ErrPreconditionFailed) {
		return nil, fmt.Errorf("%w: %s", ErrUpiExists, normalized)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add UPI ID: %w", err)
	}

	log.WithFields(log.Fields{"account": accountNumber, "handle": normalized}).Info("UPI ID linked")
	return &UpiID{
		ID:            store.LastSegment(writes[0].Path),
		Handle:        normalized,
		AccountNumber: accountNumber,
		Active:        true,
		CreatedAt:     now,
	}, nil
}

// ListUpiIDs returns the active handles linked to a customer, oldest first
func (l *Ledger) ListUpiIDs(ctx context.Context, accountNumber string) ([]UpiID, error) {
	if err := checkAccountNumber(accountNumber); err != nil {
		return nil, err
	}
	docs, err := l.store.Query(ctx, l.upiIDsPath(), []store.Filter{
		{Field: fieldCustomerID, Value: accountNumber},
		{Field: fieldIsActive, Value: true},
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list UPI IDs: %w", err)
	}

	ids := make([]UpiID, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, upiIDFromDocument(doc))
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return ids[i].CreatedAt.Before(ids[j].CreatedAt)
	})
	return ids, nil
}
