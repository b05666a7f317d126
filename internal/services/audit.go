package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/baharkarakas/tokenledger/internal/models"
	repo "github.com/baharkarakas/tokenledger/internal/repository"
	"github.com/baharkarakas/tokenledger/internal/worker"
)

// Auditor writes audit rows after the ledger has committed. Failures are
// logged; they never undo a committed entry.
type Auditor struct {
	logs repo.AuditLogs
	wp   *worker.Pool
	log  *zap.Logger
}

func NewAuditor(logs repo.AuditLogs, wp *worker.Pool, log *zap.Logger) *Auditor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Auditor{logs: logs, wp: wp, log: log}
}

func (a *Auditor) Record(entityType, entityID, action string, details map[string]any) {
	if a == nil || a.logs == nil {
		return
	}
	l := models.AuditLog{
		EntityType: entityType,
		EntityID:   &entityID,
		Action:     action,
		Details:    details,
	}
	write := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.logs.Create(ctx, l); err != nil {
			a.log.Error("audit write failed",
				zap.String("entity_type", entityType),
				zap.String("entity_id", entityID),
				zap.String("action", action),
				zap.Error(err))
		}
	}
	if a.wp == nil || !a.wp.Submit(write) {
		write()
	}
}
