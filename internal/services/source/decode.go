package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"
)

// decode picks a decoder from the extension of name
func decode(name string, r io.Reader) ([][]string, error) {
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".csv", ".txt":
		return decodeCSV(r)
	case ".xlsx", ".xlsm":
		return decodeXLSX(r)
	default:
		return nil, fmt.Errorf("unsupported file type %q for %s", ext, name)
	}
}

// decodeCSV reads a delimited text table
func decodeCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow ragged rows; the loader reports missing cells
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

// decodeXLSX reads the first sheet of a workbook. Cells are returned raw so
// dates arrive as Excel serial numbers rather than display strings.
func decodeXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}
