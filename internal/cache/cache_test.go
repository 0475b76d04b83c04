package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/buyergroup-cli/internal/model"
)

func sampleResult() *model.BuyerGroupResult {
	return &model.BuyerGroupResult{
		RequestID:   "r1",
		TenantID:    "t1",
		CompanyName: "Acme Corp",
		Tier:        model.TierEnrich,
		Members: []model.Member{
			{Quality: model.QualityScore{Overall: 80}},
			{Quality: model.QualityScore{Overall: 60}},
		},
	}
}

func TestKey_NormalizesRequest(t *testing.T) {
	a := Key(model.EnrichmentRequest{TenantID: "t1", CompanyName: "Acme Corp", Tier: model.TierEnrich})
	b := Key(model.EnrichmentRequest{TenantID: "t1", CompanyName: "  ACME   corp ", Tier: model.TierEnrich})
	assert.Equal(t, a, b)

	deeper := Key(model.EnrichmentRequest{TenantID: "t1", CompanyName: "Acme Corp", Tier: model.TierDeepResearch})
	assert.NotEqual(t, a, deeper)

	otherTenant := Key(model.EnrichmentRequest{TenantID: "t2", CompanyName: "Acme Corp", Tier: model.TierEnrich})
	assert.NotEqual(t, a, otherTenant)
}

func TestTTLFor(t *testing.T) {
	base := 10 * time.Hour
	assert.Equal(t, 10*time.Hour, TTLFor(base, 100))
	assert.Equal(t, 5*time.Hour, TTLFor(base, 50))
	// Floor at 10% of base, even for junk results.
	assert.Equal(t, time.Hour, TTLFor(base, 0))
}

func TestAverageQuality(t *testing.T) {
	assert.Equal(t, 70, AverageQuality(sampleResult()))
	assert.Equal(t, 0, AverageQuality(&model.BuyerGroupResult{}))
	assert.Equal(t, 0, AverageQuality(nil))
}

func TestMemory_SetGetExpire(t *testing.T) {
	now := time.Now()
	m := NewMemory().WithNow(func() time.Time { return now })
	ctx := context.Background()

	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)

	m.Set(ctx, "k", sampleResult(), time.Hour)
	got, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "r1", got.RequestID)

	now = now.Add(2 * time.Hour)
	_, ok = m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemory_LastWriterWins(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first := sampleResult()
	second := sampleResult()
	second.RequestID = "r2"

	m.Set(ctx, "k", first, time.Hour)
	m.Set(ctx, "k", second, time.Hour)

	got, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "r2", got.RequestID)
}

func TestMemory_Purge(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Set(ctx, "k", sampleResult(), time.Hour)
	require.NoError(t, m.Purge(ctx))
	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)
}

func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewRedisWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestRedis_SetGet(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	_, ok := r.Get(ctx, "k")
	assert.False(t, ok)

	r.Set(ctx, "k", sampleResult(), time.Hour)
	got, ok := r.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "r1", got.RequestID)
	assert.Len(t, got.Members, 2)
}

func TestRedis_Purge(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	r.Set(ctx, "a", sampleResult(), time.Hour)
	r.Set(ctx, "b", sampleResult(), time.Hour)
	require.NoError(t, r.Purge(ctx))

	_, ok := r.Get(ctx, "a")
	assert.False(t, ok)
	_, ok = r.Get(ctx, "b")
	assert.False(t, ok)
}

func TestRedis_CorruptEntryIsAMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedisWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	require.NoError(t, mr.Set(redisKeyPrefix+"k", "not json"))

	_, ok := r.Get(context.Background(), "k")
	assert.False(t, ok)
}
