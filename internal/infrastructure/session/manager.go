package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/settlement/internal/infrastructure/logger"
)

// Session is an authenticated dashboard session.
type Session struct {
	ID         string
	Username   string
	Credential string // upstream Authorization header value
	CreatedAt  time.Time
}

// Manager issues, resolves and destroys sessions.
type Manager struct {
	store  Store
	sealer *Sealer
	codec  tokenCodec
	idle   time.Duration
	now    func() time.Time
}

// NewManager creates a session manager. secret signs the cookie and keys the
// credential sealer; idle is the sliding inactivity timeout.
func NewManager(store Store, secret []byte, idle time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session: nil store")
	}
	if idle <= 0 {
		return nil, errors.New("session: idle timeout must be positive")
	}
	sealer, err := NewSealer(secret)
	if err != nil {
		return nil, err
	}
	return &Manager{
		store:  store,
		sealer: sealer,
		codec:  tokenCodec{secret: secret},
		idle:   idle,
		now:    time.Now,
	}, nil
}

// Create stores a new session and returns the signed cookie value.
func (m *Manager) Create(ctx context.Context, username, credential string) (string, *Session, error) {
	sealed, err := m.sealer.Seal([]byte(credential))
	if err != nil {
		return "", nil, err
	}

	sess := &Session{
		ID:         uuid.New().String(),
		Username:   username,
		Credential: credential,
		CreatedAt:  m.now(),
	}
	rec := Record{Username: username, Credential: sealed, CreatedAt: sess.CreatedAt}
	if err := m.store.Save(ctx, sess.ID, rec, m.idle); err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}

	token, err := m.codec.sign(sess.ID, username, sess.CreatedAt)
	if err != nil {
		_ = m.store.Delete(ctx, sess.ID)
		return "", nil, fmt.Errorf("sign session: %w", err)
	}

	logger.L(ctx).Info("Session created",
		zap.String("session_id", sess.ID),
		zap.String("username", username))
	return token, sess, nil
}

// Resolve verifies the cookie value, loads the session and slides its
// expiry. Any invalid, expired or unreadable session yields ErrNoSession.
// Store outages are returned as-is so callers can tell them apart.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	claims, err := m.codec.verify(token)
	if err != nil {
		logger.L(ctx).Debug("Rejected session cookie", zap.Error(err))
		return nil, ErrNoSession
	}

	rec, err := m.store.Load(ctx, claims.ID, m.idle)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}

	credential, err := m.sealer.Open(rec.Credential)
	if err != nil {
		logger.L(ctx).Warn("Dropping session with unreadable credential",
			zap.String("session_id", claims.ID))
		_ = m.store.Delete(ctx, claims.ID)
		return nil, ErrNoSession
	}

	return &Session{
		ID:         claims.ID,
		Username:   rec.Username,
		Credential: string(credential),
		CreatedAt:  rec.CreatedAt,
	}, nil
}

// Destroy removes the session behind token. Unknown or invalid tokens are
// ignored.
func (m *Manager) Destroy(ctx context.Context, token string) error {
	claims, err := m.codec.verify(token)
	if err != nil {
		return nil
	}
	if err := m.store.Delete(ctx, claims.ID); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	logger.L(ctx).Info("Session destroyed", zap.String("session_id", claims.ID))
	return nil
}

// Ping checks the backing store.
func (m *Manager) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}
