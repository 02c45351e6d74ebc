package cache

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/salescast/backend-go/internal/config"
	"github.com/andresuchdata/salescast/backend-go/internal/domain"
)

func baseKey() ReportKey {
	return ReportKey{
		PayloadSHA1:       PayloadDigest([]byte("date,product_name\n")),
		MinRecords:        45,
		Trees:             200,
		Seed:              42,
		LeadTimeDays:      7,
		SafetyStockFactor: 0.2,
		SafetyBasis:       "lead_time",
	}
}

func TestBuildReportKeyIsStable(t *testing.T) {
	a := buildReportKey(baseKey())
	b := buildReportKey(baseKey())

	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, forecastReportKeyPrefix+":"))
}

func TestBuildReportKeyVariesWithParameters(t *testing.T) {
	base := buildReportKey(baseKey())

	mutations := map[string]func(k *ReportKey){
		"payload":     func(k *ReportKey) { k.PayloadSHA1 = PayloadDigest([]byte("other")) },
		"min records": func(k *ReportKey) { k.MinRecords = 30 },
		"trees":       func(k *ReportKey) { k.Trees = 100 },
		"seed":        func(k *ReportKey) { k.Seed = 7 },
		"lead time":   func(k *ReportKey) { k.LeadTimeDays = 14 },
		"safety":      func(k *ReportKey) { k.SafetyStockFactor = 0.5 },
		"basis":       func(k *ReportKey) { k.SafetyBasis = "daily" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			k := baseKey()
			mutate(&k)
			assert.NotEqual(t, base, buildReportKey(k))
		})
	}
}

func TestPayloadDigest(t *testing.T) {
	assert.Equal(t, "da39a3ee5e6b4b0d3255bfef95601890afd80709", PayloadDigest(nil))
	assert.Len(t, PayloadDigest([]byte("x")), 40)
}

func TestDisabledCacheIsNoop(t *testing.T) {
	c, err := NewForecastCache(config.CacheConfig{Enabled: false})
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	report := domain.Report{"Widget": domain.Succeeded(domain.ForecastResult{ReorderPoint: 84})}
	require.NoError(t, c.SetReport(ctx, baseKey(), report))

	got, ok, err := c.GetReport(ctx, baseKey())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.NoError(t, c.InvalidateAll(ctx))
}

func TestBuildRedisOptions(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{RedisHost: "cache", RedisPort: "6380", RedisDB: 2, RedisPassword: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "pw", opts.Password)

	opts, err = buildRedisOptions(config.CacheConfig{})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", opts.Addr)

	opts, err = buildRedisOptions(config.CacheConfig{RedisURL: "redis://:secret@redis.internal:6379/3"})
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6379", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, "secret", opts.Password)

	_, err = buildRedisOptions(config.CacheConfig{RedisURL: "http://nope"})
	assert.Error(t, err)
}

func TestReportEncodingKeepsPrecision(t *testing.T) {
	report := domain.Report{
		"Widget": domain.Succeeded(domain.ForecastResult{MAE: 0.123456789, ReorderPoint: 84, CurrentStock: 50, Status: domain.ReorderNeeded}),
		"Gadget": domain.Failed(domain.NewProductError(domain.ErrInsufficientHistory, "Gadget", "too short", nil)),
	}

	payload, err := encodeReport(report)
	require.NoError(t, err)

	decoded, err := decodeReport(payload)
	require.NoError(t, err)
	require.True(t, decoded["Widget"].OK())
	assert.Equal(t, *report["Widget"].Result, *decoded["Widget"].Result)

	require.NotNil(t, decoded["Gadget"].Err)
	assert.Equal(t, domain.ErrInsufficientHistory, decoded["Gadget"].Err.Kind)
	assert.Equal(t, "Gadget", decoded["Gadget"].Err.Product)
	assert.Equal(t, "too short", decoded["Gadget"].Err.Message)
}

func TestReportEncodingRejectsBadEntries(t *testing.T) {
	_, err := encodeReport(domain.Report{"Widget": {}})
	assert.Error(t, err)

	_, err = decodeReport([]byte(`{"Widget":{"mae":1,"status":"Maybe"}}`))
	assert.Error(t, err)
}
