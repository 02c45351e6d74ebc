package domain

import (
	"sort"
	"time"
)

// SalesRecord is one validated row of sales history.
type SalesRecord struct {
	Date         time.Time `json:"date"`
	ProductName  string    `json:"product_name"`
	QuantitySold float64   `json:"quantity_sold"`
	CurrentStock int       `json:"current_stock"`
}

// Dataset is the validated upload handed to the forecasting pipeline.
type Dataset struct {
	Records []SalesRecord
}

// Products returns the distinct product names in order of first appearance.
func (d *Dataset) Products() []string {
	seen := make(map[string]struct{})
	products := make([]string, 0)
	for _, r := range d.Records {
		if _, ok := seen[r.ProductName]; ok {
			continue
		}
		seen[r.ProductName] = struct{}{}
		products = append(products, r.ProductName)
	}
	return products
}

// CountByProduct returns the number of records held for each product.
func (d *Dataset) CountByProduct() map[string]int {
	counts := make(map[string]int)
	for _, r := range d.Records {
		counts[r.ProductName]++
	}
	return counts
}

// Series builds the ordered series of a single product.
func (d *Dataset) Series(product string) ProductSeries {
	records := make([]SalesRecord, 0)
	for _, r := range d.Records {
		if r.ProductName == product {
			records = append(records, r)
		}
	}
	return NewProductSeries(product, records)
}

// ProductSeries is the date-ordered history of one product. It never aliases
// the slice it was built from.
type ProductSeries struct {
	product string
	records []SalesRecord
}

// NewProductSeries copies records and stable-sorts them by date, so rows that
// share a date keep their upload order.
func NewProductSeries(product string, records []SalesRecord) ProductSeries {
	sorted := make([]SalesRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})
	return ProductSeries{product: product, records: sorted}
}

func (s ProductSeries) Product() string { return s.product }

func (s ProductSeries) Len() int { return len(s.records) }

func (s ProductSeries) At(i int) SalesRecord { return s.records[i] }

// Last returns the chronologically latest record. ok is false for an empty series.
func (s ProductSeries) Last() (SalesRecord, bool) {
	if len(s.records) == 0 {
		return SalesRecord{}, false
	}
	return s.records[len(s.records)-1], true
}

// Records returns a copy of the ordered records.
func (s ProductSeries) Records() []SalesRecord {
	out := make([]SalesRecord, len(s.records))
	copy(out, s.records)
	return out
}
