package domain

import "strings"

// Status is the reorder decision for a product.
type Status int

const (
	StockSafe Status = iota
	ReorderNeeded
)

var statusLabels = map[Status]string{
	StockSafe:     "Stock Safe",
	ReorderNeeded: "Reorder Needed",
}

var statusCodes = map[string]Status{
	"stock safe":     StockSafe,
	"reorder needed": ReorderNeeded,
}

// String returns the label used in API responses.
func (s Status) String() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}

	return "Unknown"
}

// ParseStatus returns the status for a given label (case-insensitive).
func ParseStatus(label string) (Status, bool) {
	status, ok := statusCodes[strings.ToLower(strings.TrimSpace(label))]

	return status, ok
}
