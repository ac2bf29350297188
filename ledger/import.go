package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aqlanhadi/kisht/extractor"
	"github.com/aqlanhadi/kisht/extractor/common"
	"github.com/aqlanhadi/kisht/extractor/upi_statement"
	"github.com/aqlanhadi/kisht/store"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// ErrFatal marks failures that stop an import before any row is applied:
// the statement cannot be opened or has no header row
var ErrFatal = errors.New("FATAL")

// ImportSummary tallies what happened to every attempted statement row
type ImportSummary struct {
	RowsAttempted             int             `json:"rows_attempted"`
	Added                     int             `json:"added"`
	DuplicatesSkipped         int             `json:"duplicates_skipped"`
	NonUpiOrWithdrawalSkipped int             `json:"non_upi_or_withdrawal_skipped"`
	UnparseableSkipped        int             `json:"unparseable_skipped"`
	UnknownHandleRows         int             `json:"unknown_handle_rows"`
	Errors                    int             `json:"errors"`
	UnknownHandles            []string        `json:"unknown_handles"`
	AmountPosted              decimal.Decimal `json:"amount_posted"`
	Aborted                   bool            `json:"aborted"`

	seen map[string]bool
}

func newImportSummary() *ImportSummary {
	return &ImportSummary{
		UnknownHandles: []string{},
		AmountPosted:   decimal.Zero,
		seen:           map[string]bool{},
	}
}

func (s *ImportSummary) addUnknown(handle string) {
	s.UnknownHandleRows++
	if s.seen[handle] {
		return
	}
	s.seen[handle] = true
	s.UnknownHandles = append(s.UnknownHandles, handle)
}

// Format renders the summary for display, listing at most preview unknown
// handles
func (s *ImportSummary) Format(preview int) string {
	var b strings.Builder
	if s.Aborted {
		b.WriteString("Import cancelled\n")
	} else {
		b.WriteString("Import complete\n")
	}
	fmt.Fprintf(&b, "Rows attempted:        %d\n", s.RowsAttempted)
	fmt.Fprintf(&b, "Added:                 %d (%s)\n", s.Added, common.FormatMoney(s.AmountPosted))
	fmt.Fprintf(&b, "Duplicates skipped:    %d\n", s.DuplicatesSkipped)
	fmt.Fprintf(&b, "Non-UPI or withdrawal: %d\n", s.NonUpiOrWithdrawalSkipped)
	fmt.Fprintf(&b, "Unparseable:           %d\n", s.UnparseableSkipped)
	fmt.Fprintf(&b, "Unknown UPI IDs:       %d\n", s.UnknownHandleRows)
	fmt.Fprintf(&b, "Errors:                %d\n", s.Errors)

	if len(s.UnknownHandles) > 0 {
		shown := s.UnknownHandles
		if preview > 0 && len(shown) > preview {
			shown = shown[:preview]
		}
		b.WriteString("Unknown UPI IDs: ")
		b.WriteString(strings.Join(shown, ", "))
		if more := len(s.UnknownHandles) - len(shown); more > 0 {
			fmt.Fprintf(&b, " ... and %d more", more)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatSummary renders s with the configured unknown handle preview
func (l *Ledger) FormatSummary(s *ImportSummary) string {
	return s.Format(l.unknownPreview)
}

// ImportStatement reconciles a bank statement against the ledger. Matched UPI
// credits are posted one row at a time; per-row problems are tallied in the
// summary. Setup failures are returned wrapped in ErrFatal. Cancellation and
// read errors after the header are returned with the partial summary.
func (l *Ledger) ImportStatement(ctx context.Context, r io.Reader, filename string) (*ImportSummary, error) {
	stmt, err := extractor.OpenStatement(r, filename, l.statement)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFatal, err)
	}
	defer stmt.Close()

	summary := newImportSummary()
	for {
		if err := ctx.Err(); err != nil {
			summary.Aborted = true
			log.WithField("file", filename).Warn("import cancelled")
			return summary, err
		}

		row, err := stmt.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if !stmt.HeaderFound() {
				return nil, fmt.Errorf("%w: %w", ErrFatal, err)
			}
			summary.Aborted = true
			log.WithError(err).WithField("file", filename).Warn("import stopped")
			return summary, fmt.Errorf("import stopped after %d rows: %w", summary.RowsAttempted, err)
		}

		if !row.Reason.Attempted() {
			continue
		}
		summary.RowsAttempted++

		switch row.Reason {
		case upi_statement.SkipNonUpiOrWithdrawal:
			summary.NonUpiOrWithdrawalSkipped++
			continue
		case upi_statement.SkipIncomplete, upi_statement.SkipUnparseable:
			summary.UnparseableSkipped++
			continue
		}

		l.importRow(ctx, row.Transaction, summary)
	}

	log.WithFields(log.Fields{
		"file":       filename,
		"attempted":  summary.RowsAttempted,
		"added":      summary.Added,
		"duplicates": summary.DuplicatesSkipped,
		"unknown":    summary.UnknownHandleRows,
		"errors":     summary.Errors,
	}).Info("statement imported")

	return summary, nil
}

func (l *Ledger) importRow(ctx context.Context, tx upi_statement.ParsedTransaction, summary *ImportSummary) {
	logger := log.WithFields(log.Fields{"row": tx.Row, "ref": tx.BankReference, "handle": tx.UpiHandle})

	processed, err := l.IsProcessed(ctx, tx.BankReference)
	if err != nil {
		logger.WithError(err).Warn("duplicate check failed")
		summary.Errors++
		return
	}
	if processed {
		logger.Debug("reference already processed")
		summary.DuplicatesSkipped++
		return
	}

	accountNumber, found, err := l.ResolveHandle(ctx, tx.UpiHandle)
	if err != nil {
		logger.WithError(err).Warn("handle lookup failed")
		summary.Errors++
		return
	}
	if !found {
		logger.Debug("unknown UPI ID")
		summary.addUnknown(tx.UpiHandle)
		return
	}

	logger = logger.WithField("account", accountNumber)
	err = l.postPayment(ctx, accountNumber, tx)
	switch {
	case err == nil:
		summary.Added++
		summary.AmountPosted = summary.AmountPosted.Add(tx.Amount)
		logger.WithField("amount", tx.Amount.StringFixed(2)).Debug("payment posted")
	case errors.Is(err, store.ErrPreconditionFailed) && l.processedSince(ctx, tx.BankReference):
		logger.Debug("reference processed concurrently")
		summary.DuplicatesSkipped++
	default:
		logger.WithError(err).Warn("failed to post payment")
		summary.Errors++
	}
}

// postPayment writes the transaction, the processed marker and the new paid
// amount in one commit
func (l *Ledger) postPayment(ctx context.Context, accountNumber string, tx upi_statement.ParsedTransaction) error {
	customer, err := l.GetCustomer(ctx, accountNumber)
	if err != nil {
		return err
	}

	txn := l.newPayment(*customer, tx.Amount, tx.Description, tx.BankReference)
	marker := ProcessedReference{
		Reference:     tx.BankReference,
		AccountNumber: accountNumber,
		Handle:        tx.UpiHandle,
		Amount:        tx.Amount,
		ProcessedAt:   txn.Date,
	}

	return l.store.Commit(ctx, []store.Write{
		{
			Path:         l.transactionPath(accountNumber, txn.ID),
			Fields:       txn.fields(),
			Precondition: store.MustNotExist,
		},
		{
			Path:         l.processedRefPath(tx.BankReference),
			Fields:       marker.fields(),
			Precondition: store.MustNotExist,
		},
		l.amountPaidWrite(accountNumber, customer.AmountPaid.Add(tx.Amount)),
	})
}

func (l *Ledger) processedSince(ctx context.Context, reference string) bool {
	processed, err := l.IsProcessed(ctx, reference)
	return err == nil && processed
}
