package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func salesCSV(products map[string]int) string {
	var b strings.Builder
	b.WriteString("date,product_name,quantity_sold,current_stock\n")
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	for _, product := range []string{"Widget", "Gadget", "Gizmo"} {
		n, ok := products[product]
		if !ok {
			continue
		}
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "%s,%s,%d,50\n", start.AddDate(0, 0, i).Format("2006-01-02"), product, 10+i%3)
		}
	}
	return b.String()
}

func requireValidationKind(t *testing.T, err error, kind ValidationKind) *ValidationError {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	assert.Equal(t, kind, ve.Kind)
	return ve
}

func TestParseCSVValid(t *testing.T) {
	ds, err := NewValidator(DefaultMinRecords).ParseCSV(strings.NewReader(salesCSV(map[string]int{"Widget": 50, "Gadget": 45})))
	require.NoError(t, err)
	assert.Len(t, ds.Records, 95)
	assert.Equal(t, []string{"Widget", "Gadget"}, ds.Products())

	first := ds.Records[0]
	assert.Equal(t, "Widget", first.ProductName)
	assert.Equal(t, 10.0, first.QuantitySold)
	assert.Equal(t, 50, first.CurrentStock)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), first.Date)
}

func TestParseCSVMissingColumns(t *testing.T) {
	_, err := NewValidator(0).ParseCSV(strings.NewReader("date,product_name\n2024-01-01,Widget\n"))
	ve := requireValidationKind(t, err, MissingColumns)
	assert.Equal(t, []string{"quantity_sold", "current_stock"}, ve.Columns)
	assert.Equal(t, "Missing required columns: ['quantity_sold', 'current_stock']", ve.Message)
}

func TestParseCSVHeaderTolerance(t *testing.T) {
	data := "\ufeff date , product_name,quantity_sold,current_stock,region\n"
	for i := 0; i < 3; i++ {
		data += fmt.Sprintf("2024-01-0%d,Widget,1,2,EU\n", i+1)
	}

	ds, err := NewValidator(3).ParseCSV(strings.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, ds.Records, 3)
}

func TestParseCSVInvalidDate(t *testing.T) {
	data := strings.Replace(salesCSV(map[string]int{"Widget": 45}), "2024-01-05", "not-a-date", 1)

	_, err := NewValidator(0).ParseCSV(strings.NewReader(data))
	ve := requireValidationKind(t, err, InvalidDate)
	assert.Equal(t, "Invalid date format detected.", ve.Message)
	assert.Equal(t, 5, ve.Row)
}

func TestParseCSVDateLayouts(t *testing.T) {
	for _, d := range []string{"2024-02-03", "2024/02/03", "02/03/2024", "2024-02-03 10:00:00", "2024-02-03T10:00:00Z"} {
		got, err := parseDate(d)
		require.NoError(t, err, d)
		assert.Equal(t, 2024, got.Year())
		assert.Equal(t, time.February, got.Month())
		assert.Equal(t, 3, got.Day())
	}
}

func TestParseCSVInvalidNumeric(t *testing.T) {
	tests := []struct {
		name        string
		replacement string
		column      string
	}{
		{name: "text quantity", replacement: "2024-01-03,Widget,twelve,50", column: "quantity_sold"},
		{name: "negative stock", replacement: "2024-01-03,Widget,12,-1", column: "current_stock"},
		{name: "nan quantity", replacement: "2024-01-03,Widget,NaN,50", column: "quantity_sold"},
		{name: "empty stock", replacement: "2024-01-03,Widget,12,", column: "current_stock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := strings.Replace(salesCSV(map[string]int{"Widget": 45}), "2024-01-03,Widget,12,50", tt.replacement, 1)

			_, err := NewValidator(0).ParseCSV(strings.NewReader(data))
			ve := requireValidationKind(t, err, InvalidNumeric)
			assert.Equal(t, "Invalid numeric values detected.", ve.Message)
			assert.Equal(t, []string{tt.column}, ve.Columns)
			assert.Equal(t, 3, ve.Row)
		})
	}
}

func TestParseCSVDatesCheckedBeforeNumbers(t *testing.T) {
	data := salesCSV(map[string]int{"Widget": 45})
	data = strings.Replace(data, "2024-01-02,Widget,11,50", "2024-01-02,Widget,x,50", 1)
	data = strings.Replace(data, "2024-01-30", "bad", 1)

	_, err := NewValidator(0).ParseCSV(strings.NewReader(data))
	requireValidationKind(t, err, InvalidDate)
}

func TestParseCSVThousandsSeparatorAndTruncation(t *testing.T) {
	data := "date,product_name,quantity_sold,current_stock\n" +
		"2024-01-01,Widget,\"1,250.5\",7.9\n"

	ds, err := NewValidator(1).ParseCSV(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1250.5, ds.Records[0].QuantitySold)
	assert.Equal(t, 7, ds.Records[0].CurrentStock)
}

func TestParseCSVInsufficientData(t *testing.T) {
	_, err := NewValidator(DefaultMinRecords).ParseCSV(strings.NewReader(salesCSV(map[string]int{"Widget": 50, "Gadget": 44})))
	ve := requireValidationKind(t, err, InsufficientData)
	assert.Equal(t, "Gadget", ve.Product)
	assert.Equal(t, "Not enough data for product: Gadget (Minimum 45 days required)", ve.Message)
}

func TestParseCSVLoweredMinimum(t *testing.T) {
	ds, err := NewValidator(30).ParseCSV(strings.NewReader(salesCSV(map[string]int{"Widget": 30})))
	require.NoError(t, err)
	assert.Len(t, ds.Records, 30)
}

func TestParseCSVEmpty(t *testing.T) {
	_, err := NewValidator(0).ParseCSV(strings.NewReader(""))
	requireValidationKind(t, err, ReadFailure)
}

func TestParseFileXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"date", "product_name", "quantity_sold", "current_stock"}))
	for i := 0; i < 3; i++ {
		cell := fmt.Sprintf("A%d", i+2)
		require.NoError(t, f.SetSheetRow(sheet, cell, &[]interface{}{fmt.Sprintf("2024-01-0%d", i+1), "Widget", 5, 9}))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	ds, err := NewValidator(3).ParseFile("sales.XLSX", buf.Bytes())
	require.NoError(t, err)
	require.Len(t, ds.Records, 3)
	assert.Equal(t, 5.0, ds.Records[2].QuantitySold)
	assert.Equal(t, 9, ds.Records[2].CurrentStock)
}

func TestParseFileXLSXDateCells(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"date", "product_name", "quantity_sold", "current_stock"}))
	for i := 0; i < 3; i++ {
		cell := fmt.Sprintf("A%d", i+2)
		require.NoError(t, f.SetSheetRow(sheet, cell, &[]interface{}{start.AddDate(0, 0, i), "Widget", 1250.5, 9}))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	ds, err := NewValidator(3).ParseFile("sales.xlsx", buf.Bytes())
	require.NoError(t, err)
	require.Len(t, ds.Records, 3)
	assert.Equal(t, start, ds.Records[0].Date)
	assert.Equal(t, start.AddDate(0, 0, 2), ds.Records[2].Date)
	assert.Equal(t, 1250.5, ds.Records[2].QuantitySold)
}

func TestSerialToDate(t *testing.T) {
	tests := []struct {
		name     string
		cell     string
		date1904 bool
		want     string
	}{
		{"serial", "45292", false, "2024-01-01"},
		{"serial with time", "45292.5", false, "2024-01-01 12:00:00"},
		{"1904 epoch", "43830", true, "2024-01-01"},
		{"text passes through", "2024-01-05", false, "2024-01-05"},
		{"empty passes through", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serialToDate(tt.cell, tt.date1904))
		})
	}
}

func TestParseCSVMissingProduct(t *testing.T) {
	csv := salesCSV(map[string]int{"Widget": 45}) + "2024-03-01,,4,50\n"
	ve := requireValidationKind(t, func() error {
		_, err := NewValidator(45).ParseCSV(strings.NewReader(csv))
		return err
	}(), MissingProduct)
	assert.Equal(t, 46, ve.Row)
	assert.Equal(t, "Missing product name detected.", ve.Message)
}

func TestParseFileCorruptXLSX(t *testing.T) {
	_, err := NewValidator(0).ParseFile("sales.xlsx", []byte("not a zip"))
	requireValidationKind(t, err, ReadFailure)
}

func TestParseFileDefaultsToCSV(t *testing.T) {
	ds, err := NewValidator(45).ParseFile("history.txt", []byte(salesCSV(map[string]int{"Gizmo": 45})))
	require.NoError(t, err)
	assert.Equal(t, []string{"Gizmo"}, ds.Products())
}
