package forecast

import (
	"context"
	"fmt"
)

// FallbackFunc is told why the primary provider was bypassed.
type FallbackFunc func(primary string, err error)

type fallbackProvider struct {
	primary  Provider
	fallback Provider
	notify   FallbackFunc
}

// WithFallback returns a provider that asks primary first and answers from
// fallback when primary fails or returns no samples. notify may be nil.
func WithFallback(primary, fallback Provider, notify FallbackFunc) Provider {
	if primary == nil {
		return fallback
	}
	return &fallbackProvider{primary: primary, fallback: fallback, notify: notify}
}

func (p *fallbackProvider) Name() string { return p.primary.Name() }

func (p *fallbackProvider) Irradiance(ctx context.Context, req Request) ([]IrradiancePoint, error) {
	pts, err := p.primary.Irradiance(ctx, req)
	if err == nil && len(pts) == 0 {
		err = ErrNoData
	}
	if err == nil {
		return pts, nil
	}
	if p.notify != nil {
		p.notify(p.primary.Name(), err)
	}
	pts, ferr := p.fallback.Irradiance(ctx, req)
	if ferr != nil {
		return nil, fmt.Errorf("fallback %s after %s failed: %w", p.fallback.Name(), p.primary.Name(), ferr)
	}
	return pts, nil
}
