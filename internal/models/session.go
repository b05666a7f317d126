package models

import "time"

type SessionStatus string

const (
	SessionActive SessionStatus = "ACTIVE"
	SessionEnded  SessionStatus = "ENDED"
)

// Session is a metered broadcast session paid for by a SESSION_DEBIT entry
// that shares its id as idempotency key.
type Session struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Status    SessionStatus  `json:"status"`
	Cost      int64          `json:"cost"`
	Voice     string         `json:"voice,omitempty"`
	Locale    string         `json:"locale,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
}

// End moves an active session to ENDED. Ending an ended session is a no-op.
func (s *Session) End(at time.Time) bool {
	if s.Status == SessionEnded {
		return false
	}
	s.Status = SessionEnded
	s.EndedAt = &at
	return true
}
