package common

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dslipak/pdf"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// SheetReader yields the rows of a statement grid as formatted cell strings
type SheetReader interface {
	// Next returns the next row, or io.EOF once the sheet is exhausted.
	Next() ([]string, error)
	Close() error
}

type excelSheet struct {
	file *excelize.File
	rows *excelize.Rows
}

func (s *excelSheet) Next() ([]string, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return s.rows.Columns()
}

func (s *excelSheet) Close() error {
	rowsErr := s.rows.Close()
	if err := s.file.Close(); err != nil {
		return err
	}
	return rowsErr
}

type csvSheet struct {
	reader *csv.Reader
}

func (s *csvSheet) Next() ([]string, error) {
	return s.reader.Read()
}

func (s *csvSheet) Close() error { return nil }

// OpenSheet opens the first worksheet of an xlsx workbook, or a CSV export.
// The container is picked from the file extension, falling back to sniffing
// the zip magic bytes.
func OpenSheet(reader io.Reader, filename string) (SheetReader, error) {
	buffered := bufio.NewReader(reader)

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".xltx":
		return openExcel(buffered)
	case ".csv":
		return openCSV(buffered), nil
	case ".xls":
		return nil, errors.New("legacy .xls workbooks are not supported, re-save the statement as .xlsx")
	}

	magic, err := buffered.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read statement: %w", err)
	}
	if bytes.Equal(magic, []byte("PK")) {
		return openExcel(buffered)
	}
	return openCSV(buffered), nil
}

func openExcel(reader io.Reader) (SheetReader, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	sheet := f.GetSheetName(0)
	if sheet == "" {
		f.Close()
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	return &excelSheet{file: f, rows: rows}, nil
}

func openCSV(reader io.Reader) SheetReader {
	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return &csvSheet{reader: r}
}

// ExtractRowsFromPDFReader returns the text of every row of every page
func ExtractRowsFromPDFReader(reader io.Reader) ([][]string, error) {
	var rAt io.ReaderAt
	var size int64

	switch v := reader.(type) {
	case io.ReaderAt:
		rAt = v
		seeker, ok := reader.(io.Seeker)
		if !ok {
			return nil, errors.New("reader is io.ReaderAt but not io.Seeker, cannot determine size")
		}
		cur, _ := seeker.Seek(0, io.SeekCurrent)
		end, err := seeker.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, err
		}
		seeker.Seek(cur, io.SeekStart)
		size = end
	default:
		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(reader); err != nil {
			return nil, err
		}
		b := buf.Bytes()
		rAt = bytes.NewReader(b)
		size = int64(len(b))
	}

	r, err := pdf.NewReader(rAt, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	numPages := r.NumPage()
	extracted := make([][]string, 0, numPages*50)

	for no := 1; no <= numPages; no++ {
		page := r.Page(no)
		rows, err := page.GetTextByRow()
		if err != nil {
			log.WithField("page", no).Warnf("error getting text from page: %v", err)
			continue
		}

		for _, row := range rows {
			cells := make([]string, 0, len(row.Content))
			for _, text := range row.Content {
				cells = append(cells, text.S)
			}
			if len(cells) > 0 {
				extracted = append(extracted, cells)
			}
		}
	}

	return extracted, nil
}
