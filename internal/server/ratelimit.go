package server

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/shibest/mycelius/internal/models"
)

// Limiters hands out one token bucket per provider, so one chatty provider cannot starve another.
type Limiters struct {
	mu       sync.Mutex
	perSec   int
	limiters map[models.Service]*rate.Limiter
}

// NewLimiters allows perSec upstream requests per second per provider, with an equal burst.
// A non-positive value disables limiting.
func NewLimiters(perSec int) *Limiters {
	return &Limiters{perSec: perSec, limiters: make(map[models.Service]*rate.Limiter)}
}

// Wait blocks until service may make another upstream request or ctx is done.
func (l *Limiters) Wait(ctx context.Context, service models.Service) error {
	if l.perSec <= 0 {
		return nil
	}

	l.mu.Lock()
	lim, ok := l.limiters[service]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.perSec), l.perSec)
		l.limiters[service] = lim
	}
	l.mu.Unlock()

	return lim.Wait(ctx)
}
