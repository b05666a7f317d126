package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	repo "github.com/baharkarakas/tokenledger/internal/repository"
)

type Repositories struct {
	Users     repo.Users
	Ledger    repo.Ledger
	Sessions  repo.Sessions
	AuditLogs repo.AuditLogs
}

func NewRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Users:     &usersRepo{pool},
		Ledger:    &ledgerRepo{pool},
		Sessions:  &sessionsRepo{pool},
		AuditLogs: &auditLogsRepo{pool},
	}
}
