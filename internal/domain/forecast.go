package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// ForecastResult is the per-product output of a successful pipeline run.
type ForecastResult struct {
	MAE          float64
	ReorderPoint int
	CurrentStock int
	Status       Status
}

// ProductOutcome holds either a result or the error that replaced it.
type ProductOutcome struct {
	Result *ForecastResult
	Err    *ProductError
}

func Succeeded(result ForecastResult) ProductOutcome {
	return ProductOutcome{Result: &result}
}

func Failed(err *ProductError) ProductOutcome {
	return ProductOutcome{Err: err}
}

func (o ProductOutcome) OK() bool {
	return o.Err == nil && o.Result != nil
}

type forecastResultJSON struct {
	MAE          float64 `json:"MAE"`
	ReorderPoint int     `json:"Reorder Point"`
	CurrentStock int     `json:"Current Stock"`
	Status       string  `json:"Status"`
}

type productErrorJSON struct {
	Error   ErrorKind `json:"error"`
	Message string    `json:"message"`
}

// MarshalJSON renders the wire format consumed by the dashboard: MAE rounded
// to two decimals and the status as its label.
func (o ProductOutcome) MarshalJSON() ([]byte, error) {
	if o.Err != nil {
		return json.Marshal(productErrorJSON{Error: o.Err.Kind, Message: o.Err.Message})
	}
	if o.Result == nil {
		return nil, fmt.Errorf("product outcome has neither result nor error")
	}
	return json.Marshal(forecastResultJSON{
		MAE:          RoundMAE(o.Result.MAE),
		ReorderPoint: o.Result.ReorderPoint,
		CurrentStock: o.Result.CurrentStock,
		Status:       o.Result.Status.String(),
	})
}

func (o *ProductOutcome) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if _, isErr := probe["error"]; isErr {
		var pe productErrorJSON
		if err := json.Unmarshal(data, &pe); err != nil {
			return err
		}
		*o = Failed(&ProductError{Kind: pe.Error, Message: pe.Message})
		return nil
	}

	var fr forecastResultJSON
	if err := json.Unmarshal(data, &fr); err != nil {
		return err
	}
	status, ok := ParseStatus(fr.Status)
	if !ok {
		return fmt.Errorf("unknown status %q", fr.Status)
	}
	*o = Succeeded(ForecastResult{
		MAE:          fr.MAE,
		ReorderPoint: fr.ReorderPoint,
		CurrentStock: fr.CurrentStock,
		Status:       status,
	})
	return nil
}

// RoundMAE rounds to the two decimals reported to clients.
func RoundMAE(v float64) float64 {
	return math.Round(v*100) / 100
}

// Report maps product name to its outcome.
type Report map[string]ProductOutcome

// Failures counts products that carry an error.
func (r Report) Failures() int {
	n := 0
	for _, o := range r {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// TimedOut reports whether any product failed because a deadline passed.
// Such a report depends on timing and is not reproducible from its input.
func (r Report) TimedOut() bool {
	for _, o := range r {
		if o.Err != nil && errors.Is(o.Err, context.DeadlineExceeded) {
			return true
		}
	}
	return false
}

// UnmarshalJSON restores product names on failed outcomes from the map keys.
func (r *Report) UnmarshalJSON(data []byte) error {
	var outcomes map[string]ProductOutcome
	if err := json.Unmarshal(data, &outcomes); err != nil {
		return err
	}
	for product, o := range outcomes {
		if o.Err != nil {
			o.Err.Product = product
		}
	}
	*r = Report(outcomes)
	return nil
}

// RunStatus tracks a forecast run through its lifecycle.
type RunStatus string

const (
	RunProcessing RunStatus = "processing"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// ForecastRun is one upload processed by the service.
type ForecastRun struct {
	ID           string     `json:"id" db:"id"`
	Filename     string     `json:"filename" db:"filename"`
	PayloadSHA1  string     `json:"payload_sha1" db:"payload_sha1"`
	Status       RunStatus  `json:"status" db:"status"`
	ProductCount int        `json:"product_count" db:"product_count"`
	FailedCount  int        `json:"failed_count" db:"failed_count"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
	Cached       bool       `json:"cached" db:"-"`
	Report       Report     `json:"results" db:"-"`
}
