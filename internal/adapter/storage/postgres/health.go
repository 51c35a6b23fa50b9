package postgres

import "context"

// HealthCheck reports database liveness for the health endpoint. The
// ledger cannot serve anything without Postgres, so a failed ping marks
// the whole service degraded.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	_, err := h.pool.Exec(ctx, "SELECT 1")
	return err
}

func (h *HealthCheck) Name() string {
	return "postgresql"
}
