package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andresuchdata/salescast/backend-go/internal/config"
	"github.com/andresuchdata/salescast/backend-go/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	forecastReportKeyPrefix = "forecast:report"
	forecastScanBatchSize   = 100
)

// ReportKey identifies a report by upload content and the parameters that
// shape it. The pipeline is deterministic, so equal keys mean equal reports.
type ReportKey struct {
	PayloadSHA1       string
	MinRecords        int
	Trees             int
	Seed              int64
	LeadTimeDays      float64
	SafetyStockFactor float64
	SafetyBasis       string
}

type ForecastCache interface {
	GetReport(ctx context.Context, key ReportKey) (domain.Report, bool, error)
	SetReport(ctx context.Context, key ReportKey, report domain.Report) error
	InvalidateAll(ctx context.Context) error
	Close() error
}

type redisForecastCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopForecastCache struct{}

func NewForecastCache(cfg config.CacheConfig) (ForecastCache, error) {
	if !cfg.Enabled {
		return &noopForecastCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisForecastCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewNoopForecastCache() ForecastCache {
	return &noopForecastCache{}
}

func (c *redisForecastCache) GetReport(ctx context.Context, key ReportKey) (domain.Report, bool, error) {
	payload, err := c.client.Get(ctx, buildReportKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	report, err := decodeReport(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode forecast report cache: %w", err)
	}

	return report, true, nil
}

func (c *redisForecastCache) SetReport(ctx context.Context, key ReportKey, report domain.Report) error {
	payload, err := encodeReport(report)
	if err != nil {
		return fmt.Errorf("encode forecast report cache: %w", err)
	}

	if err := c.client.Set(ctx, buildReportKey(key), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisForecastCache) InvalidateAll(ctx context.Context) error {
	removed, err := unlinkByPrefix(ctx, c.client, forecastReportKeyPrefix+":", forecastScanBatchSize)
	if err != nil {
		return err
	}
	log.Info().Int64("removed", removed).Msg("forecast cache invalidated")
	return nil
}

func (c *redisForecastCache) Close() error {
	return c.client.Close()
}

func (n *noopForecastCache) GetReport(ctx context.Context, key ReportKey) (domain.Report, bool, error) {
	return nil, false, nil
}

func (n *noopForecastCache) SetReport(ctx context.Context, key ReportKey, report domain.Report) error {
	return nil
}

func (n *noopForecastCache) InvalidateAll(ctx context.Context) error {
	return nil
}

// cachedOutcome keeps full MAE precision; the wire format rounds it.
type cachedOutcome struct {
	MAE          float64          `json:"mae,omitempty"`
	ReorderPoint int              `json:"reorder_point,omitempty"`
	CurrentStock int              `json:"current_stock,omitempty"`
	Status       string           `json:"status,omitempty"`
	ErrorKind    domain.ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

func encodeReport(report domain.Report) ([]byte, error) {
	entries := make(map[string]cachedOutcome, len(report))
	for product, o := range report {
		switch {
		case o.Err != nil:
			entries[product] = cachedOutcome{ErrorKind: o.Err.Kind, ErrorMessage: o.Err.Message}
		case o.Result != nil:
			entries[product] = cachedOutcome{
				MAE:          o.Result.MAE,
				ReorderPoint: o.Result.ReorderPoint,
				CurrentStock: o.Result.CurrentStock,
				Status:       o.Result.Status.String(),
			}
		default:
			return nil, fmt.Errorf("product %q has neither result nor error", product)
		}
	}
	return json.Marshal(entries)
}

func decodeReport(payload []byte) (domain.Report, error) {
	var entries map[string]cachedOutcome
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, err
	}

	report := make(domain.Report, len(entries))
	for product, e := range entries {
		if e.ErrorKind != "" {
			report[product] = domain.Failed(domain.NewProductError(e.ErrorKind, product, e.ErrorMessage, nil))
			continue
		}
		status, ok := domain.ParseStatus(e.Status)
		if !ok {
			return nil, fmt.Errorf("product %q: unknown status %q", product, e.Status)
		}
		report[product] = domain.Succeeded(domain.ForecastResult{
			MAE:          e.MAE,
			ReorderPoint: e.ReorderPoint,
			CurrentStock: e.CurrentStock,
			Status:       status,
		})
	}
	return report, nil
}

func buildReportKey(key ReportKey) string {
	return fmt.Sprintf("%s:%s", forecastReportKeyPrefix, reportKeyHash(key))
}

func reportKeyHash(key ReportKey) string {
	raw := fmt.Sprintf("payload=%s|min_records=%d|trees=%d|seed=%d|lead_time=%.4f|safety=%.4f|basis=%s",
		key.PayloadSHA1, key.MinRecords, key.Trees, key.Seed, key.LeadTimeDays, key.SafetyStockFactor, key.SafetyBasis)
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// PayloadDigest returns the hex SHA-1 of an upload.
func PayloadDigest(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func (n *noopForecastCache) Close() error {
	return nil
}
