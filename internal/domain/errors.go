package domain

import "fmt"

// ErrorKind classifies a per-product pipeline failure.
type ErrorKind string

const (
	// ErrInsufficientHistory: fewer than two feature rows after dropping the lag window.
	ErrInsufficientHistory ErrorKind = "InsufficientHistory"
	// ErrFeatureComputation: a feature or target value is not finite.
	ErrFeatureComputation ErrorKind = "FeatureComputation"
	// ErrModelTraining: the regressor could not be fitted.
	ErrModelTraining ErrorKind = "ModelTraining"
)

// ProductError is the failure recorded for a single product in place of a result.
type ProductError struct {
	Kind    ErrorKind
	Product string
	Message string
	Err     error
}

func NewProductError(kind ErrorKind, product, message string, err error) *ProductError {
	return &ProductError{Kind: kind, Product: product, Message: message, Err: err}
}

func (e *ProductError) Error() string {
	if e.Product == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: product %q: %s", e.Kind, e.Product, e.Message)
}

func (e *ProductError) Unwrap() error {
	return e.Err
}
