// Package memory is an in-process implementation of the repository
// interfaces, used for local runs (storage: memory) and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/baharkarakas/tokenledger/internal/models"
	"github.com/baharkarakas/tokenledger/internal/repository"
)

type entryKey struct {
	kind models.EntryKind
	key  string
}

// Store serializes every write transaction behind one mutex, which is
// stricter than the row locks Postgres takes but has the same observable
// guarantees.
type Store struct {
	mu       sync.RWMutex
	users    map[string]models.User
	accounts map[string]models.Account
	entries  map[entryKey]models.LedgerEntry
	order    []entryKey
	sessions map[string]models.Session
	audit    []models.AuditLog

	// FailOn, when set, is consulted before each LedgerTx operation
	// ("lock_account", "find_entry", "insert_entry", "set_balance",
	// "insert_session"); a non-nil error aborts that operation.
	FailOn func(op string) error

	now func() time.Time
}

func New() *Store {
	return &Store{
		users:    map[string]models.User{},
		accounts: map[string]models.Account{},
		entries:  map[entryKey]models.LedgerEntry{},
		sessions: map[string]models.Session{},
		now:      time.Now,
	}
}

type Repositories struct {
	Users     repository.Users
	Ledger    repository.Ledger
	Sessions  repository.Sessions
	AuditLogs repository.AuditLogs
}

func (s *Store) Repositories() Repositories {
	return Repositories{
		Users:     usersRepo{s},
		Ledger:    ledgerRepo{s},
		Sessions:  sessionsRepo{s},
		AuditLogs: auditRepo{s},
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ---------- ledger ----------

type ledgerRepo struct{ s *Store }

func (r ledgerRepo) WithTx(ctx context.Context, fn func(repository.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	tx := &memTx{
		s:        r.s,
		accounts: map[string]models.Account{},
		entries:  map[entryKey]models.LedgerEntry{},
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (r ledgerRepo) FindEntry(_ context.Context, kind models.EntryKind, key string) (models.LedgerEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.entries[entryKey{kind, key}]
	if !ok {
		return models.LedgerEntry{}, repository.ErrNotFound
	}
	e.Metadata = cloneMap(e.Metadata)
	return e, nil
}

func (r ledgerRepo) GetAccount(_ context.Context, userID string) (models.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.accounts[userID]
	if !ok {
		return models.Account{}, repository.ErrNotFound
	}
	return a, nil
}

func (r ledgerRepo) ListEntries(_ context.Context, userID string, kind *models.EntryKind, limit, offset int) ([]models.LedgerEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []models.LedgerEntry{}
	// newest first
	for i := len(r.s.order) - 1; i >= 0; i-- {
		e := r.s.entries[r.s.order[i]]
		if e.UserID != userID || (kind != nil && e.Kind != *kind) {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		e.Metadata = cloneMap(e.Metadata)
		out = append(out, e)
	}
	return out, nil
}

// memTx stages writes and applies them on commit.
type memTx struct {
	s        *Store
	accounts map[string]models.Account
	entries  map[entryKey]models.LedgerEntry
	order    []entryKey
	sessions []models.Session
}

func (t *memTx) fail(op string) error {
	if t.s.FailOn == nil {
		return nil
	}
	return t.s.FailOn(op)
}

func (t *memTx) LockAccount(_ context.Context, userID string) (models.Account, error) {
	if err := t.fail("lock_account"); err != nil {
		return models.Account{}, err
	}
	if a, ok := t.accounts[userID]; ok {
		return a, nil
	}
	a, ok := t.s.accounts[userID]
	if !ok {
		a = models.Account{UserID: userID, UpdatedAt: t.s.now()}
	}
	t.accounts[userID] = a
	return a, nil
}

func (t *memTx) FindEntry(_ context.Context, kind models.EntryKind, key string) (models.LedgerEntry, error) {
	if err := t.fail("find_entry"); err != nil {
		return models.LedgerEntry{}, err
	}
	k := entryKey{kind, key}
	if e, ok := t.entries[k]; ok {
		return e, nil
	}
	if e, ok := t.s.entries[k]; ok {
		e.Metadata = cloneMap(e.Metadata)
		return e, nil
	}
	return models.LedgerEntry{}, repository.ErrNotFound
}

func (t *memTx) InsertEntry(_ context.Context, e models.LedgerEntry) (models.LedgerEntry, error) {
	if err := t.fail("insert_entry"); err != nil {
		return models.LedgerEntry{}, err
	}
	k := entryKey{e.Kind, e.IdempotencyKey}
	if _, ok := t.s.entries[k]; ok {
		return models.LedgerEntry{}, repository.ErrDuplicate
	}
	if _, ok := t.entries[k]; ok {
		return models.LedgerEntry{}, repository.ErrDuplicate
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = t.s.now()
	e.Metadata = cloneMap(e.Metadata)
	t.entries[k] = e
	t.order = append(t.order, k)
	return e, nil
}

func (t *memTx) SetBalance(_ context.Context, userID string, balance int64) (models.Account, error) {
	if err := t.fail("set_balance"); err != nil {
		return models.Account{}, err
	}
	a, ok := t.accounts[userID]
	if !ok {
		return models.Account{}, repository.ErrNotFound
	}
	// accounts.balance CHECK (balance >= 0)
	if balance < 0 {
		return models.Account{}, errNegativeBalance
	}
	a.Balance = balance
	a.UpdatedAt = t.s.now()
	t.accounts[userID] = a
	return a, nil
}

func (t *memTx) InsertSession(_ context.Context, sess models.Session) (models.Session, error) {
	if err := t.fail("insert_session"); err != nil {
		return models.Session{}, err
	}
	if _, ok := t.s.sessions[sess.ID]; ok {
		return models.Session{}, repository.ErrDuplicate
	}
	for _, staged := range t.sessions {
		if staged.ID == sess.ID {
			return models.Session{}, repository.ErrDuplicate
		}
	}
	sess.StartedAt = t.s.now()
	sess.Meta = cloneMap(sess.Meta)
	t.sessions = append(t.sessions, sess)
	return sess, nil
}

func (t *memTx) commit() {
	for id, a := range t.accounts {
		t.s.accounts[id] = a
	}
	for _, k := range t.order {
		t.s.entries[k] = t.entries[k]
		t.s.order = append(t.s.order, k)
	}
	for _, sess := range t.sessions {
		t.s.sessions[sess.ID] = sess
	}
}

type constErr string

func (e constErr) Error() string { return string(e) }

const errNegativeBalance = constErr("memory: balance check constraint violated")

// ---------- sessions ----------

type sessionsRepo struct{ s *Store }

func (r sessionsRepo) GetByID(_ context.Context, id string) (models.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return models.Session{}, repository.ErrNotFound
	}
	return sess, nil
}

func (r sessionsRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]models.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := []models.Session{}
	for _, sess := range r.s.sessions {
		if sess.UserID == userID {
			all = append(all, sess)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartedAt.After(all[j].StartedAt) })
	if offset >= len(all) {
		return []models.Session{}, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r sessionsRepo) End(_ context.Context, id string, at time.Time) (models.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return models.Session{}, repository.ErrNotFound
	}
	if sess.End(at) {
		r.s.sessions[id] = sess
	}
	return sess, nil
}

// ---------- users ----------

type usersRepo struct{ s *Store }

func (r usersRepo) Create(_ context.Context, username, email, hash, role string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return models.User{}, repository.ErrDuplicate
		}
	}
	now := r.s.now()
	u := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.s.users[u.ID] = u
	return u, nil
}

func (r usersRepo) GetByID(_ context.Context, id string) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return models.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (r usersRepo) GetByEmail(_ context.Context, email string) (models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return models.User{}, repository.ErrNotFound
}

func (r usersRepo) List(_ context.Context) ([]models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r usersRepo) SetWallet(_ context.Context, id, address string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return models.User{}, repository.ErrNotFound
	}
	u.WalletAddress = &address
	u.UpdatedAt = r.s.now()
	r.s.users[id] = u
	return u, nil
}

// PutUser inserts a user as-is. Used for seeding.
func (s *Store) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// ---------- audit ----------

type auditRepo struct{ s *Store }

func (r auditRepo) Create(_ context.Context, l models.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l.ID = uuid.NewString()
	l.CreatedAt = r.s.now()
	r.s.audit = append(r.s.audit, l)
	return nil
}

// AuditLogs returns a copy of the recorded audit rows.
func (s *Store) AuditLogs() []models.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.AuditLog(nil), s.audit...)
}

// EntryCount returns the number of committed ledger entries.
func (s *Store) EntryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
