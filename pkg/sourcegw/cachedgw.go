package sourcegw

import (
	"context"
	"time"

	"github.com/developforgood/cycle-orchestrator/pkg/cache"
)

// schemaValidationTTL bounds how long a ValidateSchema result is trusted
// before the next import request re-checks the source directly. A
// cohort's base schema does not change mid-cycle, but it can be edited
// between cycles, so the cache is short-lived rather than permanent.
const schemaValidationTTL = 5 * time.Minute

// CachedGateway wraps a Gateway and memoizes ValidateSchema per base id,
// so repeated import attempts against the same base (the common case
// while an organizer iterates on a cohort's setup) don't each round-trip
// to the source. Every other method passes straight through.
type CachedGateway struct {
	Gateway
	schema cache.Cache[bool]
}

// NewCachedGateway wraps gw with a ValidateSchema cache backed by c.
// Callers choose the backend (in-process or Redis) by constructing c.
func NewCachedGateway(gw Gateway, c cache.Cache[bool]) *CachedGateway {
	return &CachedGateway{Gateway: gw, schema: c}
}

func (g *CachedGateway) ValidateSchema(ctx context.Context, baseID string) (bool, error) {
	return cache.GetOrSet(ctx, g.schema, baseID, func(ctx context.Context) (bool, time.Duration, error) {
		valid, err := g.Gateway.ValidateSchema(ctx, baseID)
		return valid, schemaValidationTTL, err
	})
}

var _ Gateway = (*CachedGateway)(nil)
