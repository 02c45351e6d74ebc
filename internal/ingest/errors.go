package ingest

import "strings"

// ValidationKind classifies why an upload was rejected.
type ValidationKind string

const (
	ReadFailure      ValidationKind = "ReadFailure"
	MissingColumns   ValidationKind = "MissingColumns"
	InvalidDate      ValidationKind = "InvalidDate"
	InvalidNumeric   ValidationKind = "InvalidNumeric"
	MissingProduct   ValidationKind = "MissingProduct"
	InsufficientData ValidationKind = "InsufficientData"
)

// ValidationError rejects the whole upload. Row is the 1-based data row
// (header excluded) when the failure is tied to one.
type ValidationError struct {
	Kind    ValidationKind
	Message string
	Product string
	Columns []string
	Row     int
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "'" + s + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
