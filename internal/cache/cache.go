// Package cache stores finished buyer-group results keyed by normalized
// request, so a repeated request within the TTL costs nothing. A cache
// failure is never a request failure: backends degrade to a miss.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/sells-group/buyergroup-cli/internal/fusion"
	"github.com/sells-group/buyergroup-cli/internal/model"
)

// Cache is the result cache. Implementations are safe for concurrent
// use; concurrent writes to one key are last-writer-wins.
type Cache interface {
	Get(ctx context.Context, key string) (*model.BuyerGroupResult, bool)
	Set(ctx context.Context, key string, result *model.BuyerGroupResult, ttl time.Duration)
	Purge(ctx context.Context) error
	Close() error
}

// Key derives the cache key for a request. Two requests that differ only
// in casing, accents or whitespace share an entry; tier is part of the
// key because a deeper tier is never served a shallower tier's result.
func Key(req model.EnrichmentRequest) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s",
		req.TenantID,
		fusion.Normalize(req.CompanyName),
		fusion.Normalize(req.Website),
		fusion.Normalize(req.Role),
		req.Tier,
	)
}

// TTLFor scales the base TTL by result quality: high-quality results are
// worth keeping the full term, thin ones expire early so a retry gets a
// fresh fetch sooner. The floor keeps even poor results for a tenth of
// the base term.
func TTLFor(base time.Duration, avgQuality int) time.Duration {
	if avgQuality > 100 {
		avgQuality = 100
	}
	if avgQuality < 10 {
		avgQuality = 10
	}
	return time.Duration(float64(base) * float64(avgQuality) / 100)
}

// AverageQuality returns the mean member quality of a result, or 0 for
// an empty group.
func AverageQuality(result *model.BuyerGroupResult) int {
	if result == nil || len(result.Members) == 0 {
		return 0
	}
	sum := 0
	for _, m := range result.Members {
		sum += m.Quality.Overall
	}
	return sum / len(result.Members)
}
