package inventory

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/andresuchdata/salescast/backend-go/internal/domain"
	"github.com/andresuchdata/salescast/backend-go/internal/forecast"
)

const (
	DefaultLeadTimeDays      = 7.0
	DefaultSafetyStockFactor = 0.2
)

// SafetyBasis selects the demand the safety factor is applied to.
type SafetyBasis string

const (
	// LeadTimeDemand: safety stock = factor x avg x lead time (8.4 x avg at the defaults).
	LeadTimeDemand SafetyBasis = "lead_time"
	// DailyDemand: safety stock = factor x avg (7.2 x avg at the defaults).
	DailyDemand SafetyBasis = "daily"
)

// ParseSafetyBasis maps a config value to a basis; unknown values yield LeadTimeDemand.
func ParseSafetyBasis(s string) SafetyBasis {
	if SafetyBasis(strings.ToLower(strings.TrimSpace(s))) == DailyDemand {
		return DailyDemand
	}
	return LeadTimeDemand
}

// Config holds the replenishment constants.
type Config struct {
	LeadTimeDays      float64     // Days between placing and receiving an order
	SafetyStockFactor float64     // Safety stock as a fraction of the basis demand
	SafetyBasis       SafetyBasis // Demand the factor applies to
}

func DefaultConfig() Config {
	return Config{
		LeadTimeDays:      DefaultLeadTimeDays,
		SafetyStockFactor: DefaultSafetyStockFactor,
		SafetyBasis:       LeadTimeDemand,
	}
}

// Decision holds the reorder-point calculation for a product
type Decision struct {
	AvgDemand       float64 // Mean daily demand over the feature rows
	SafetyStock     float64
	ReorderPointRaw float64 // Unrounded reorder point, used for the decision
	ReorderPoint    int     // Rounded for display
	CurrentStock    int
	Status          domain.Status
}

// Advisor calculates reorder decisions
type Advisor struct {
	cfg Config
}

// NewAdvisor creates a new advisor; zero fields fall back to defaults
func NewAdvisor(cfg Config) *Advisor {
	if cfg.LeadTimeDays <= 0 {
		cfg.LeadTimeDays = DefaultLeadTimeDays
	}
	if cfg.SafetyStockFactor < 0 {
		cfg.SafetyStockFactor = DefaultSafetyStockFactor
	}
	if cfg.SafetyBasis != DailyDemand {
		cfg.SafetyBasis = LeadTimeDemand
	}
	return &Advisor{cfg: cfg}
}

// Advise computes the reorder decision from the same rows the model trains on,
// so the lag window's leading records are excluded from the average.
func (a *Advisor) Advise(rows []forecast.FeatureRow, currentStock int) (Decision, error) {
	if len(rows) == 0 {
		return Decision{}, fmt.Errorf("no feature rows to average")
	}

	demand := make([]float64, len(rows))
	for i, r := range rows {
		demand[i] = r.Target
	}

	d := Decision{CurrentStock: currentStock}

	// 1. Average daily demand
	d.AvgDemand = stat.Mean(demand, nil)

	// 2. Safety stock = factor x basis demand
	d.SafetyStock = a.cfg.SafetyStockFactor * d.AvgDemand
	if a.cfg.SafetyBasis == LeadTimeDemand {
		d.SafetyStock *= a.cfg.LeadTimeDays
	}

	// 3. Reorder point = (average demand x lead time) + safety stock
	d.ReorderPointRaw = d.AvgDemand*a.cfg.LeadTimeDays + d.SafetyStock
	d.ReorderPoint = int(math.RoundToEven(d.ReorderPointRaw))

	// 4. Compare against the unrounded point
	if float64(currentStock) < d.ReorderPointRaw {
		d.Status = domain.ReorderNeeded
	} else {
		d.Status = domain.StockSafe
	}

	return d, nil
}
