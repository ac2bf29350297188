package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aqlanhadi/kisht/store"
)

// IsProcessed reports whether a bank reference has already been applied
func (l *Ledger) IsProcessed(ctx context.Context, reference string) (bool, error) {
	_, err := l.store.Get(ctx, l.processedRefPath(reference))
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check reference %s: %w", reference, err)
	}
	return true, nil
}

// ResolveHandle finds the customer a UPI handle is linked to. An unknown
// handle is not an error.
func (l *Ledger) ResolveHandle(ctx context.Context, handle string) (string, bool, error) {
	handle = strings.ToLower(strings.TrimSpace(handle))
	if handle == "" || strings.Contains(handle, "/") {
		return "", false, nil
	}

	doc, err := l.store.Get(ctx, l.uniqueUpiIDPath(handle))
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve %s: %w", handle, err)
	}

	accountNumber := doc.Fields.String(fieldCustomerID)
	if accountNumber == "" {
		return "", false, nil
	}
	return accountNumber, true, nil
}
