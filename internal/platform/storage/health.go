package storage

import (
	"context"
	"time"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

// Pinger is implemented by stores backed by a network service.
type Pinger interface {
	Ping(ctx context.Context) error
}

type poolReporter interface {
	PoolStats() *PoolStats
}

// Health is the session store section of the health endpoint.
type Health struct {
	Healthy bool       `json:"healthy"`
	Error   string     `json:"error,omitempty"`
	Pool    *PoolStats `json:"pool,omitempty"`
}

// CheckHealth pings st when it is network backed. Local stores are always
// healthy.
func CheckHealth(ctx context.Context, st Store) Health {
	h := Health{Healthy: true}
	if p, ok := st.(Pinger); ok {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			h.Healthy = false
			h.Error = err.Error()
		}
	}
	if r, ok := st.(poolReporter); ok {
		h.Pool = r.PoolStats()
	}
	return h
}
