package metrics

import (
	"database/sql"
	"time"
)

// PoolHealthStatus is the readiness verdict for a connection pool.
type PoolHealthStatus string

const (
	PoolHealthy   PoolHealthStatus = "healthy"
	PoolDegraded  PoolHealthStatus = "degraded"
	PoolUnhealthy PoolHealthStatus = "unhealthy"
)

// PoolHealth is reported by the readiness probe.
type PoolHealth struct {
	Status      PoolHealthStatus `json:"status"`
	Open        int              `json:"open"`
	InUse       int              `json:"in_use"`
	MaxOpen     int              `json:"max_open"`
	Utilization float64          `json:"utilization"`
	WaitCount   int64            `json:"wait_count"`
}

// AssessPool inspects db.Stats(). A nil db is unhealthy.
func AssessPool(db *sql.DB) PoolHealth {
	if db == nil {
		return PoolHealth{Status: PoolUnhealthy}
	}
	return assess(db.Stats())
}

func assess(st sql.DBStats) PoolHealth {
	h := PoolHealth{
		Status:    PoolHealthy,
		Open:      st.OpenConnections,
		InUse:     st.InUse,
		MaxOpen:   st.MaxOpenConnections,
		WaitCount: st.WaitCount,
	}
	if st.MaxOpenConnections > 0 {
		h.Utilization = float64(st.InUse) / float64(st.MaxOpenConnections)
	}

	switch {
	case h.Utilization >= 0.95:
		h.Status = PoolUnhealthy
	case h.Utilization >= 0.80:
		h.Status = PoolDegraded
	case st.WaitCount > 0 && st.WaitDuration > 5*time.Second:
		h.Status = PoolDegraded
	}
	return h
}
