package postgres

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Lockouts *LockoutRepository
	Audit    *AuditRepository
}

// NewRepositories wires all repositories backed by the provided executor, usually a *pgxpool.Pool.
func NewRepositories(exec pgExecutor) *Repositories {
	return &Repositories{
		Lockouts: NewLockoutRepository(exec),
		Audit:    NewAuditRepository(exec),
	}
}
