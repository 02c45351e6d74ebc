package forecast

import (
	"fmt"
	"time"

	"github.com/andresuchdata/salescast/backend-go/internal/domain"
)

// Lags are the historical offsets, in records, used as predictors.
var Lags = [...]int{1, 2, 3, 7, 14, 30}

// MaxLag is the number of leading records that can never produce a row.
const MaxLag = 30

// MinFeatureRows is the smallest row count that still yields a train and a test part.
const MinFeatureRows = 2

// FeatureCount is the width of FeatureRow.Vector.
const FeatureCount = len(Lags) + 3

// FeatureRow is one supervised-learning example derived from a series position.
type FeatureRow struct {
	Position  int
	Date      time.Time
	Lag1      float64
	Lag2      float64
	Lag3      float64
	Lag7      float64
	Lag14     float64
	Lag30     float64
	DayOfWeek int // Monday=0 ... Sunday=6
	Month     int
	TimeIndex int
	Target    float64
}

// Vector returns the features in model order:
// lag_1, lag_2, lag_3, lag_7, lag_14, lag_30, day_of_week, month, time_index.
func (r FeatureRow) Vector() []float64 {
	return []float64{
		r.Lag1, r.Lag2, r.Lag3, r.Lag7, r.Lag14, r.Lag30,
		float64(r.DayOfWeek), float64(r.Month), float64(r.TimeIndex),
	}
}

// FeatureBuilder turns a product series into lagged feature rows.
type FeatureBuilder struct{}

func NewFeatureBuilder() *FeatureBuilder {
	return &FeatureBuilder{}
}

// Build emits one row per position i >= MaxLag. Lags only look backwards.
func (b *FeatureBuilder) Build(series domain.ProductSeries) ([]FeatureRow, error) {
	n := series.Len()
	count := n - MaxLag
	if count < 0 {
		count = 0
	}

	rows := make([]FeatureRow, 0, count)
	qty := func(i int) float64 { return series.At(i).QuantitySold }

	for i := MaxLag; i < n; i++ {
		rec := series.At(i)
		rows = append(rows, FeatureRow{
			Position:  i,
			Date:      rec.Date,
			Lag1:      qty(i - 1),
			Lag2:      qty(i - 2),
			Lag3:      qty(i - 3),
			Lag7:      qty(i - 7),
			Lag14:     qty(i - 14),
			Lag30:     qty(i - 30),
			DayOfWeek: weekdayIndex(rec.Date),
			Month:     int(rec.Date.Month()),
			TimeIndex: i,
			Target:    rec.QuantitySold,
		})
	}

	if len(rows) < MinFeatureRows {
		return nil, domain.NewProductError(
			domain.ErrInsufficientHistory,
			series.Product(),
			fmt.Sprintf("%d records give %d feature rows after the %d-record lag window, need at least %d",
				n, len(rows), MaxLag, MinFeatureRows),
			nil,
		)
	}

	return rows, nil
}

func weekdayIndex(t time.Time) int {
	// time.Weekday starts the week on Sunday
	return (int(t.Weekday()) + 6) % 7
}
