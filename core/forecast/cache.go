package forecast

import (
	"context"
	"sync"
)

type cachedProvider struct {
	Provider

	mu   sync.Mutex
	memo map[Request][]IrradiancePoint
}

// Cached remembers successful answers of p per request, so that several
// runs over the same span share one fetch. Errors are not cached.
func Cached(p Provider) Provider {
	if p == nil {
		return nil
	}
	return &cachedProvider{Provider: p, memo: make(map[Request][]IrradiancePoint)}
}

func (c *cachedProvider) Irradiance(ctx context.Context, req Request) ([]IrradiancePoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pts, ok := c.memo[req]; ok {
		return append([]IrradiancePoint(nil), pts...), nil
	}
	pts, err := c.Provider.Irradiance(ctx, req)
	if err != nil {
		return nil, err
	}
	c.memo[req] = append([]IrradiancePoint(nil), pts...)
	return pts, nil
}
