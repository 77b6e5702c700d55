// Package excel reads survey response files (xlsx or csv) into the columnar
// table the scoring pipeline works on.
package excel

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"commonmetrics/domain/table"
)

// defaultSheet is used when no sheet name is configured.
const defaultSheet = "Sheet1"

// DataReader handles reading Excel and CSV files
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	sheet    string
}

// NewDataReader creates a new data reader that handles both Excel and CSV
// files, dispatching on the file extension.
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType, sheet: defaultSheet}
}

// WithSheet overrides the worksheet name read from xlsx files.
func (r *DataReader) WithSheet(sheet string) *DataReader {
	if sheet != "" {
		r.sheet = sheet
	}
	return r
}

// ReadTable reads the file into a columnar table. Columns whose every
// non-empty cell parses as a number become numeric columns with empty cells
// as missing values; everything else becomes a label column with the empty
// string as missing.
func (r *DataReader) ReadTable() (*table.Table, error) {
	log.Printf("[DataReader] Starting to read %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSVRows()
	case "xlsx":
		rows, err = r.readExcelRows()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
	if err != nil {
		return nil, err
	}

	if len(rows) < 2 {
		return nil, fmt.Errorf("%s file must have at least a header row and one data row", strings.ToUpper(r.fileType))
	}
	return buildTable(rows)
}

func (r *DataReader) readExcelRows() ([][]string, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(r.sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", r.sheet, err)
	}
	log.Printf("[DataReader] sheet %s read in %.2fms (%d rows)", r.sheet, float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))
	return rows, nil
}

func (r *DataReader) readCSVRows() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // ragged rows are padded during table build
	startTime := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	log.Printf("[DataReader] CSV file read in %.2fms (%d rows)", float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))
	return rows, nil
}

// buildTable converts raw string rows into the columnar table, inferring one
// type per column.
func buildTable(rows [][]string) (*table.Table, error) {
	headers := make([]string, len(rows[0]))
	for i, header := range rows[0] {
		headers[i] = strings.TrimSpace(header)
	}

	nRows := len(rows) - 1
	cells := make([][]string, len(headers))
	for col := range headers {
		cells[col] = make([]string, nRows)
		for i := 0; i < nRows; i++ {
			row := rows[i+1]
			if col < len(row) {
				cells[col][i] = strings.TrimSpace(row[col])
			}
		}
	}

	tbl := table.New(nRows)
	numericCols := 0
	for col, header := range headers {
		if header == "" {
			continue
		}
		if numeric, ok := parseNumericColumn(cells[col]); ok {
			if err := tbl.AddNumeric(header, numeric); err != nil {
				return nil, err
			}
			numericCols++
			continue
		}
		if err := tbl.AddLabels(header, cells[col]); err != nil {
			return nil, err
		}
	}

	log.Printf("[DataReader] table built (%d rows, %d numeric + %d label columns)",
		nRows, numericCols, len(tbl.Columns())-numericCols)
	return tbl, nil
}

// parseNumericColumn returns the parsed column when every non-empty cell is
// numeric. A column with no values at all stays a label column.
func parseNumericColumn(cells []string) ([]float64, bool) {
	out := make([]float64, len(cells))
	any := false
	for i, cell := range cells {
		if cell == "" {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
		any = true
	}
	return out, any
}
