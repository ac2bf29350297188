package extractor

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aqlanhadi/kisht/extractor/common"
	"github.com/aqlanhadi/kisht/extractor/upi_statement"
	log "github.com/sirupsen/logrus"
)

// Row is one row of a statement grid together with its parse outcome
type Row struct {
	Transaction upi_statement.ParsedTransaction
	Reason      upi_statement.SkipReason
}

// Statement walks the rows of an opened statement through the row parser
type Statement struct {
	sheet  common.SheetReader
	parser *upi_statement.Parser
	done   bool
}

// OpenStatement opens a statement spreadsheet and prepares it for parsing
func OpenStatement(reader io.Reader, filename string, cfg upi_statement.Config) (*Statement, error) {
	sheet, err := common.OpenSheet(reader, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open statement %s: %w", filename, err)
	}
	return &Statement{
		sheet:  sheet,
		parser: upi_statement.NewParser(cfg),
	}, nil
}

// Next parses the next row. It returns io.EOF when the sheet is exhausted or
// the trailing blank rows end the data, and upi_statement.ErrHeaderNotFound
// when the sheet ended without a header row.
func (s *Statement) Next() (Row, error) {
	if s.done {
		return Row{}, io.EOF
	}

	cells, err := s.sheet.Next()
	if errors.Is(err, io.EOF) {
		s.done = true
		if !s.parser.HeaderFound() {
			return Row{}, upi_statement.ErrHeaderNotFound
		}
		return Row{}, io.EOF
	}
	if err != nil {
		return Row{}, fmt.Errorf("failed to read statement row: %w", err)
	}

	tx, reason := s.parser.ParseRow(cells)
	if reason == upi_statement.SkipEndOfData {
		log.Debug("blank row limit reached, treating the rest of the sheet as empty")
		s.done = true
		return Row{}, io.EOF
	}
	return Row{Transaction: tx, Reason: reason}, nil
}

// HeaderFound reports whether the header row has been read
func (s *Statement) HeaderFound() bool {
	return s.parser.HeaderFound()
}

// Close releases the underlying sheet
func (s *Statement) Close() error {
	return s.sheet.Close()
}

// Extraction is the result of a dry run over a whole statement
type Extraction struct {
	Transactions []upi_statement.ParsedTransaction `json:"transactions"`
	Skipped      map[string]int                    `json:"skipped"`
	Attempted    int                               `json:"rows_attempted"`
}

// ExtractStatement parses a whole statement without touching the store
func ExtractStatement(reader io.Reader, filename string, cfg upi_statement.Config) (*Extraction, error) {
	stmt, err := OpenStatement(reader, filename, cfg)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	result := &Extraction{
		Transactions: []upi_statement.ParsedTransaction{},
		Skipped:      map[string]int{},
	}

	for {
		row, err := stmt.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if row.Reason.Attempted() {
			result.Attempted++
		}
		if row.Reason == upi_statement.SkipNone {
			result.Transactions = append(result.Transactions, row.Transaction)
			continue
		}
		result.Skipped[row.Reason.String()]++
	}

	log.WithFields(log.Fields{
		"file":         filename,
		"transactions": len(result.Transactions),
		"attempted":    result.Attempted,
	}).Debug("statement extracted")

	return result, nil
}

// DefaultPDFColumn is the details column of the usual statement table
const DefaultPDFColumn = 1

// ExtractPDFColumn returns the text found at the given 0-based position of
// every row of a PDF, skipping blanks and the column caption.
func ExtractPDFColumn(reader io.Reader, column int) ([]string, error) {
	if column < 0 {
		return nil, fmt.Errorf("invalid column index %d", column)
	}

	rows, err := common.ExtractRowsFromPDFReader(reader)
	if err != nil {
		return nil, err
	}

	values := []string{}
	for _, row := range rows {
		if column >= len(row) {
			continue
		}
		value := strings.TrimSpace(row[column])
		if value == "" || value == "Details" {
			continue
		}
		values = append(values, value)
	}
	return values, nil
}
