package common

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func readAll(t *testing.T, sheet SheetReader) [][]string {
	t.Helper()
	var rows [][]string
	for {
		row, err := sheet.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
	require.NoError(t, sheet.Close())
	return rows
}

func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestOpenSheet_CSVRaggedRows(t *testing.T) {
	data := "a,b,c\nd\n\"e,f\",g\n"

	sheet, err := OpenSheet(strings.NewReader(data), "statement.csv")
	require.NoError(t, err)

	rows := readAll(t, sheet)
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"d"}, {"e,f", "g"}}, rows)
}

func TestOpenSheet_Workbook(t *testing.T) {
	data := workbook(t, [][]any{
		{"", "Date", "Transaction Details"},
		{"", "01/01/2024", "UPI/1/x@y"},
	})

	sheet, err := OpenSheet(bytes.NewReader(data), "statement.xlsx")
	require.NoError(t, err)

	rows := readAll(t, sheet)
	require.Len(t, rows, 2)
	assert.Equal(t, "Date", rows[0][1])
	assert.Equal(t, "UPI/1/x@y", rows[1][2])
}

func TestOpenSheet_SniffsWorkbookWithoutExtension(t *testing.T) {
	data := workbook(t, [][]any{{"only", "row"}})

	sheet, err := OpenSheet(bytes.NewReader(data), "upload")
	require.NoError(t, err)

	rows := readAll(t, sheet)
	assert.Equal(t, [][]string{{"only", "row"}}, rows)
}

func TestOpenSheet_FallsBackToCSV(t *testing.T) {
	sheet, err := OpenSheet(strings.NewReader("x,y\n"), "upload")
	require.NoError(t, err)

	rows := readAll(t, sheet)
	assert.Equal(t, [][]string{{"x", "y"}}, rows)
}

func TestOpenSheet_LegacyXLS(t *testing.T) {
	_, err := OpenSheet(strings.NewReader("whatever"), "statement.xls")
	assert.Error(t, err)
}

func TestOpenSheet_CorruptWorkbook(t *testing.T) {
	_, err := OpenSheet(strings.NewReader("PK not really a zip"), "statement.xlsx")
	assert.Error(t, err)
}
