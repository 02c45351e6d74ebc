package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/salescast/backend-go/internal/domain"
)

// DefaultMinRecords is the least history accepted per product.
const DefaultMinRecords = 45

// RequiredColumns is the upload schema.
var RequiredColumns = []string{"date", "product_name", "quantity_sold", "current_stock"}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// Validator enforces the upload schema and produces a clean dataset.
type Validator struct {
	minRecords int
}

func NewValidator(minRecords int) *Validator {
	if minRecords <= 0 {
		minRecords = DefaultMinRecords
	}
	return &Validator{minRecords: minRecords}
}

func (v *Validator) MinRecords() int {
	return v.minRecords
}

// ParseFile dispatches on the file extension: .xlsx is read from its first
// sheet, anything else as CSV.
func (v *Validator) ParseFile(filename string, data []byte) (*domain.Dataset, error) {
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		records, err := readXLSX(bytes.NewReader(data))
		if err != nil {
			return nil, &ValidationError{Kind: ReadFailure, Message: fmt.Sprintf("Error reading file: %v", err), Err: err}
		}
		return v.validate(records)
	}
	return v.ParseCSV(bytes.NewReader(data))
}

// ParseCSV reads and validates a CSV stream.
func (v *Validator) ParseCSV(r io.Reader) (*domain.Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &ValidationError{Kind: ReadFailure, Message: fmt.Sprintf("Error reading file: %v", err), Err: err}
	}
	return v.validate(records)
}

func (v *Validator) validate(records [][]string) (*domain.Dataset, error) {
	if len(records) == 0 {
		err := errors.New("no header row")
		return nil, &ValidationError{Kind: ReadFailure, Message: fmt.Sprintf("Error reading file: %v", err), Err: err}
	}

	header := records[0]
	colIndex := make(map[string]int, len(header))
	for i, h := range header {
		name := normalizeHeader(h)
		if _, dup := colIndex[name]; !dup {
			colIndex[name] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := colIndex[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{
			Kind:    MissingColumns,
			Message: "Missing required columns: " + quoteList(missing),
			Columns: missing,
		}
	}

	idxDate := colIndex["date"]
	idxProduct := colIndex["product_name"]
	idxQty := colIndex["quantity_sold"]
	idxStock := colIndex["current_stock"]

	get := func(record []string, idx int) string {
		if idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	rows := records[1:]
	ds := &domain.Dataset{Records: make([]domain.SalesRecord, 0, len(rows))}

	// Every date is checked before any numeric column.
	dates := make([]time.Time, len(rows))
	for n, record := range rows {
		d, err := parseDate(get(record, idxDate))
		if err != nil {
			return nil, &ValidationError{Kind: InvalidDate, Message: "Invalid date format detected.", Row: n + 1, Err: err}
		}
		dates[n] = d
	}

	for n, record := range rows {
		qty, err := parseQuantity(get(record, idxQty))
		if err != nil {
			return nil, &ValidationError{Kind: InvalidNumeric, Message: "Invalid numeric values detected.", Columns: []string{"quantity_sold"}, Row: n + 1, Err: err}
		}
		stock, err := parseQuantity(get(record, idxStock))
		if err != nil {
			return nil, &ValidationError{Kind: InvalidNumeric, Message: "Invalid numeric values detected.", Columns: []string{"current_stock"}, Row: n + 1, Err: err}
		}

		product := get(record, idxProduct)
		if product == "" {
			return nil, &ValidationError{Kind: MissingProduct, Message: "Missing product name detected.", Columns: []string{"product_name"}, Row: n + 1}
		}

		ds.Records = append(ds.Records, domain.SalesRecord{
			Date:         dates[n],
			ProductName:  product,
			QuantitySold: qty,
			CurrentStock: int(stock),
		})
	}

	counts := ds.CountByProduct()
	for _, product := range ds.Products() {
		if counts[product] < v.minRecords {
			return nil, &ValidationError{
				Kind:    InsufficientData,
				Message: fmt.Sprintf("Not enough data for product: %s (Minimum %d days required)", product, v.minRecords),
				Product: product,
			}
		}
	}

	return ds, nil
}

func normalizeHeader(h string) string {
	return strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// parseQuantity accepts plain decimals with optional thousands separators and
// rejects empty, non-finite and negative values.
func parseQuantity(s string) (float64, error) {
	if s == "" {
		return 0, errors.New("empty value")
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative value %q", s)
	}
	return f, nil
}
