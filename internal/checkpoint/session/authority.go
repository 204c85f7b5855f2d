// Package session is the process-wide operator session authority. The
// checkpoint is a single-operator terminal: at most one session is active
// at a time. Permission checks share a read lock; login and logout take
// the write lock.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPermissionDenied   = errors.New("permission denied")
	ErrNoSession          = errors.New("no active session")
	ErrSessionActive      = errors.New("a session is already active")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Context is the handle every engine entry point is given. Authorize
// returns the acting operator when the permission is held.
type Context interface {
	Authorize(m Module, a Action) (actor string, err error)
}

// Session is a snapshot of the active login.
type Session struct {
	Operator    string    `json:"operator"`
	DisplayName string    `json:"display_name,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	Grants      Grants    `json:"-"`
}

type Authority struct {
	mu      sync.RWMutex
	current *Session

	dir    Directory
	now    func() time.Time
	logger *zap.Logger
}

var _ Context = (*Authority)(nil)

// dummyHash keeps unknown-user logins as slow as wrong-password ones.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("checkpoint-dummy"), bcrypt.MinCost)

func NewAuthority(dir Directory, logger *zap.Logger) *Authority {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authority{
		dir:    dir,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Login verifies the operator's password and opens the session.
func (a *Authority) Login(_ context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}

	op, ok := a.dir.Lookup(username)
	hash := dummyHash
	if ok {
		hash = []byte(op.PasswordHash)
	}
	err := bcrypt.CompareHashAndPassword(hash, []byte(password))
	if !ok || errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		a.logger.Warn("login failed", zap.String("username", username))
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("verify password: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionActive, a.current.Operator)
	}
	s := &Session{
		Operator:    op.Username,
		DisplayName: op.DisplayName,
		StartedAt:   a.now(),
		Grants:      op.Grants.clone(),
	}
	a.current = s
	a.logger.Info("operator logged in", zap.String("operator", s.Operator))
	return *s, nil
}

// Logout clears the active session and returns it.
func (a *Authority) Logout() (Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return Session{}, ErrNoSession
	}
	s := *a.current
	a.current = nil
	a.logger.Info("operator logged out", zap.String("operator", s.Operator))
	return s, nil
}

// Current returns the active session, if any.
func (a *Authority) Current() (Session, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.current == nil {
		return Session{}, false
	}
	return *a.current, true
}

func (a *Authority) Authorize(m Module, act Action) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.current == nil {
		return "", ErrNoSession
	}
	if !a.current.Grants.Allows(m, act) {
		return a.current.Operator, fmt.Errorf("%w: %s lacks %s:%s", ErrPermissionDenied, a.current.Operator, m, act)
	}
	return a.current.Operator, nil
}
