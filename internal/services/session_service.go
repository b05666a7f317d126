package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/baharkarakas/tokenledger/internal/apperr"
	"github.com/baharkarakas/tokenledger/internal/models"
	repo "github.com/baharkarakas/tokenledger/internal/repository"
)

type SessionMeta struct {
	Voice  string
	Locale string
	Meta   map[string]any
}

type SessionService struct {
	ledger   *LedgerService
	sessions repo.Sessions
	cost     int64
	audit    *Auditor
	log      *zap.Logger
	now      func() time.Time
}

func NewSessionService(ledger *LedgerService, sessions repo.Sessions, cost int64, audit *Auditor, log *zap.Logger) *SessionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionService{ledger: ledger, sessions: sessions, cost: cost, audit: audit, log: log, now: time.Now}
}

// Start begins a session at the configured fixed cost.
func (s *SessionService) Start(ctx context.Context, userID string, meta SessionMeta) (models.Session, error) {
	return s.StartSession(ctx, userID, s.cost, meta)
}

// StartSession debits fixedCost and creates the ACTIVE session in the same
// ledger transaction, keyed by a fresh session id. Either both exist or
// neither does.
func (s *SessionService) StartSession(ctx context.Context, userID string, fixedCost int64, meta SessionMeta) (models.Session, error) {
	if fixedCost <= 0 {
		return models.Session{}, apperr.New(apperr.KindInvalidInput, "session cost must be positive")
	}
	id := uuid.NewString()

	entryMeta := map[string]any{"session_id": id}
	if meta.Voice != "" {
		entryMeta["voice"] = meta.Voice
	}
	if meta.Locale != "" {
		entryMeta["locale"] = meta.Locale
	}

	var sess models.Session
	insertSession := func(ctx context.Context, tx repo.LedgerTx, _ models.LedgerEntry) error {
		created, err := tx.InsertSession(ctx, models.Session{
			ID:     id,
			UserID: userID,
			Status: models.SessionActive,
			Cost:   fixedCost,
			Voice:  meta.Voice,
			Locale: meta.Locale,
			Meta:   meta.Meta,
		})
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		sess = created
		return nil
	}

	_, created, err := s.ledger.apply(ctx, userID, -fixedCost, models.KindSessionDebit, id, entryMeta, insertSession)
	if err != nil {
		return models.Session{}, err
	}
	if !created {
		// taze uuid ile olmamalı
		return models.Session{}, apperr.New(apperr.KindInternal, "session id collided with an existing debit")
	}

	s.audit.Record("session", id, models.AuditSessionStarted, map[string]any{
		"user_id": userID,
		"cost":    fixedCost,
	})
	return sess, nil
}

// EndSession moves the user's session to ENDED. Ending an ended session
// returns it unchanged; a session owned by someone else is reported as
// not found.
func (s *SessionService) EndSession(ctx context.Context, userID, sessionID string) (models.Session, error) {
	sess, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return models.Session{}, err
	}
	if sess.Status == models.SessionEnded {
		return sess, nil
	}

	sess, err = s.sessions.End(ctx, sessionID, s.now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return models.Session{}, apperr.New(apperr.KindNotFound, "session not found")
	}
	if err != nil {
		return models.Session{}, err
	}
	s.audit.Record("session", sessionID, models.AuditSessionEnded, map[string]any{"user_id": userID})
	return sess, nil
}

func (s *SessionService) Get(ctx context.Context, userID, sessionID string) (models.Session, error) {
	if sessionID == "" {
		return models.Session{}, apperr.New(apperr.KindInvalidInput, "sessionId is required")
	}
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && sess.UserID != userID) {
		return models.Session{}, apperr.New(apperr.KindNotFound, "session not found")
	}
	return sess, err
}

func (s *SessionService) List(ctx context.Context, userID string, limit, offset int) ([]models.Session, error) {
	limit, offset = clampPage(limit, offset)
	return s.sessions.ListByUser(ctx, userID, limit, offset)
}
