package upi_statement

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/aqlanhadi/kisht/extractor/common"
	"github.com/shopspring/decimal"
)

// ErrHeaderNotFound is returned when a statement ends before its header row
var ErrHeaderNotFound = errors.New("statement header row not found")

// SkipReason says why a row did not produce a transaction
type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipBeforeHeader
	SkipHeader
	SkipBalance
	SkipBlank
	SkipEndOfData
	SkipIncomplete
	SkipNonUpiOrWithdrawal
	SkipUnparseable
)

var skipReasonNames = map[SkipReason]string{
	SkipNone:               "none",
	SkipBeforeHeader:       "before_header",
	SkipHeader:             "header",
	SkipBalance:            "balance",
	SkipBlank:              "blank",
	SkipEndOfData:          "end_of_data",
	SkipIncomplete:         "incomplete",
	SkipNonUpiOrWithdrawal: "non_upi_or_withdrawal",
	SkipUnparseable:        "unparseable",
}

func (r SkipReason) String() string {
	if name, ok := skipReasonNames[r]; ok {
		return name
	}
	return "unknown"
}

// Attempted reports whether a row skipped for this reason still counts as a
// data row of the statement.
func (r SkipReason) Attempted() bool {
	switch r {
	case SkipNone, SkipIncomplete, SkipNonUpiOrWithdrawal, SkipUnparseable:
		return true
	}
	return false
}

// Columns are 0-based cell positions within a statement row
type Columns struct {
	Date       int
	Details    int
	Withdrawal int
	Deposit    int
}

// Config describes the statement layout
type Config struct {
	HeaderDate    string
	HeaderDetails string
	Columns       Columns
	MaxBlankRows  int
}

// DefaultConfig returns the layout of the bank's savings statement export
func DefaultConfig() Config {
	return Config{
		HeaderDate:    "Date",
		HeaderDetails: "Transaction Details",
		Columns: Columns{
			Date:       1,
			Details:    2,
			Withdrawal: 8,
			Deposit:    10,
		},
		MaxBlankRows: 20,
	}
}

// ParsedTransaction is a UPI credit read from one statement row
type ParsedTransaction struct {
	UpiHandle     string          `json:"upi_handle"`
	BankReference string          `json:"bank_reference"`
	Amount        decimal.Decimal `json:"amount"`
	Date          string          `json:"date"`
	Description   string          `json:"description"`
	Row           int             `json:"row"`
}

var (
	upiHandlePattern = regexp.MustCompile(`[a-zA-Z0-9._-]+@[a-zA-Z0-9.-]+`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
)

// Parser walks a statement row by row. It is not safe for concurrent use.
type Parser struct {
	config      Config
	headerFound bool
	blankRun    int
	row         int
}

// NewParser returns a parser for the given layout
func NewParser(cfg Config) *Parser {
	if cfg.MaxBlankRows <= 0 {
		cfg.MaxBlankRows = DefaultConfig().MaxBlankRows
	}
	return &Parser{config: cfg}
}

// HeaderFound reports whether the header row has been seen
func (p *Parser) HeaderFound() bool {
	return p.headerFound
}

// ParseRow classifies the next row of the sheet
func (p *Parser) ParseRow(cells []string) (ParsedTransaction, SkipReason) {
	p.row++
	cols := p.config.Columns

	date := strings.TrimSpace(cell(cells, cols.Date))
	details := strings.TrimSpace(cell(cells, cols.Details))

	if !p.headerFound {
		if p.isHeader(date, details) {
			p.headerFound = true
			return ParsedTransaction{}, SkipHeader
		}
		return ParsedTransaction{}, SkipBeforeHeader
	}

	if p.isHeader(date, details) {
		p.blankRun = 0
		return ParsedTransaction{}, SkipHeader
	}

	if date == "" && strings.EqualFold(details, "Balance") {
		p.blankRun = 0
		return ParsedTransaction{}, SkipBalance
	}

	if date == "" && details == "" {
		p.blankRun++
		if p.blankRun > p.config.MaxBlankRows {
			return ParsedTransaction{}, SkipEndOfData
		}
		return ParsedTransaction{}, SkipBlank
	}
	p.blankRun = 0

	if date == "" || details == "" {
		return ParsedTransaction{}, SkipIncomplete
	}

	deposit := cell(cells, cols.Deposit)
	withdrawal := cell(cells, cols.Withdrawal)
	if !common.IsValidAmount(deposit) || common.IsValidAmount(withdrawal) {
		return ParsedTransaction{}, SkipNonUpiOrWithdrawal
	}

	if !strings.Contains(details, "@") {
		return ParsedTransaction{}, SkipNonUpiOrWithdrawal
	}

	description, handle, reference := ExtractUpi(details)
	if handle == "" || reference == "" {
		return ParsedTransaction{}, SkipUnparseable
	}

	amount, err := common.ParseAmount(deposit)
	if err != nil || !amount.IsPositive() {
		return ParsedTransaction{}, SkipUnparseable
	}

	return ParsedTransaction{
		UpiHandle:     handle,
		BankReference: reference,
		Amount:        amount,
		Date:          date,
		Description:   description,
		Row:           p.row,
	}, SkipNone
}

func (p *Parser) isHeader(date, details string) bool {
	return strings.EqualFold(date, p.config.HeaderDate) &&
		strings.EqualFold(details, p.config.HeaderDetails)
}

// ExtractUpi normalizes a transaction description and pulls out the payer's
// UPI handle (lower-cased) and the bank reference. Either may be empty.
func ExtractUpi(details string) (description, handle, reference string) {
	description = NormalizeDescription(details)
	segments := strings.Split(description, "/")

	for _, segment := range segments {
		if !strings.Contains(segment, "@") {
			continue
		}
		handle = strings.ToLower(upiHandlePattern.FindString(segment))
		break
	}

	if len(segments) > 1 {
		reference = strings.TrimSpace(segments[1])
	}

	return description, handle, reference
}

// NormalizeDescription turns exotic spaces and control characters into plain
// spaces and collapses runs of whitespace.
func NormalizeDescription(text string) string {
	mapped := strings.Map(func(r rune) rune {
		switch r {
		case '\u00a0', '\u2007', '\u202f':
			return ' '
		}
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, text)
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(mapped, " "))
}

func cell(cells []string, index int) string {
	if index < 0 || index >= len(cells) {
		return ""
	}
	return cells[index]
}
