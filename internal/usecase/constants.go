package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction.
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// DefaultCacheTTL bounds how long a cached net survives without invalidation.
	DefaultCacheTTL = 10 * time.Minute

	// dashboardConcurrency caps parallel per-context reads for the dashboard.
	dashboardConcurrency = 8
)
