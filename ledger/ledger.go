// Package ledger keeps the operator's customers, their payments and linked
// UPI handles in a document store, and reconciles bank statements against
// them.
package ledger

import (
	"errors"
	"time"

	"github.com/aqlanhadi/kisht/extractor/common"
	"github.com/aqlanhadi/kisht/extractor/upi_statement"
	"github.com/aqlanhadi/kisht/store"
	"github.com/google/uuid"
)

const defaultUnknownPreview = 5

// Options configures a Ledger
type Options struct {
	UserID         string
	Location       *time.Location
	Statement      upi_statement.Config
	UnknownPreview int

	// Now and NewID default to the wall clock and random UUIDs.
	Now   func() time.Time
	NewID func() string
}

// Ledger is the operator's book of customers, scoped to one user
type Ledger struct {
	store          store.Store
	userID         string
	loc            *time.Location
	statement      upi_statement.Config
	unknownPreview int
	now            func() time.Time
	newID          func() string
}

// New returns a ledger for opts.UserID backed by s
func New(s store.Store, opts Options) (*Ledger, error) {
	if s == nil {
		return nil, errors.New("ledger needs a document store")
	}
	if opts.UserID == "" {
		return nil, errors.New("user id is required")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Statement.HeaderDate == "" {
		opts.Statement = upi_statement.DefaultConfig()
	}
	if opts.UnknownPreview <= 0 {
		opts.UnknownPreview = defaultUnknownPreview
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	return &Ledger{
		store:          s,
		userID:         opts.UserID,
		loc:            opts.Location,
		statement:      opts.Statement,
		unknownPreview: opts.UnknownPreview,
		now:            opts.Now,
		newID:          opts.NewID,
	}, nil
}

// UserID returns the user the ledger is scoped to
func (l *Ledger) UserID() string {
	return l.userID
}

// Location returns the time zone calendar dates are taken in
func (l *Ledger) Location() *time.Location {
	return l.loc
}

// Today returns the current calendar date
func (l *Ledger) Today() time.Time {
	return common.DateOf(l.now(), l.loc)
}
