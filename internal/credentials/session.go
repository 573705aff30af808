package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/jobboard/pkg/logger"
)

// ErrNoSession is returned for an unknown, expired or logged out session.
var ErrNoSession = errors.New("no session")

// ErrTokenExpired is returned by Login for an expired ID token.
var ErrTokenExpired = errors.New("id token expired")

// Session is a logged-in identity and its derived account.
type Session struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	Issuer    string    `json:"issuer"`
	Subject   string    `json:"subject"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// TTL bounds a session's life; the ID token's expiry shortens it.
	TTL    time.Duration
	Logger *logger.Logger
	Now    func() time.Time
}

// Manager owns the session lifecycle.
type Manager struct {
	store   Store
	deriver AddressDeriver
	ttl     time.Duration
	log     *logger.Logger
	now     func() time.Time
}

// NewManager creates a Manager.
func NewManager(store Store, deriver AddressDeriver, cfg ManagerConfig) (*Manager, error) {
	if store == nil || deriver == nil {
		return nil, fmt.Errorf("store and deriver required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewDefault("credentials")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{store: store, deriver: deriver, ttl: cfg.TTL, log: cfg.Logger, now: cfg.Now}, nil
}

func sessionKey(id string) string {
	return "session:" + id
}

// Login parses idToken, derives the account address and stores a new session.
func (m *Manager) Login(ctx context.Context, idToken string) (*Session, error) {
	claims, err := ParseIDToken(idToken)
	if err != nil {
		return nil, err
	}

	now := m.now()
	expires := now.Add(m.ttl)
	if claims.ExpiresAt != nil {
		if !claims.ExpiresAt.After(now) {
			return nil, ErrTokenExpired
		}
		if claims.ExpiresAt.Before(expires) {
			expires = claims.ExpiresAt.Time
		}
	}

	addr, err := m.deriver.DeriveAddress(ctx, claims)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        uuid.NewString(),
		Address:   addr,
		Issuer:    claims.Issuer,
		Subject:   claims.Subject,
		Email:     claims.Email,
		ExpiresAt: expires.UTC(),
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}
	if err := m.store.Set(ctx, sessionKey(s.ID), raw, expires.Sub(now)); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	m.log.WithField("session_id", s.ID).WithField("address", s.Address).Info("session created")
	return s, nil
}

// Session returns a live session.
func (m *Manager) Session(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNoSession
	}
	raw, err := m.store.Get(ctx, sessionKey(id))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if !m.now().Before(s.ExpiresAt) {
		return nil, ErrNoSession
	}
	return &s, nil
}

// Logout clears the session. Logging out twice is not an error.
func (m *Manager) Logout(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, sessionKey(id)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	m.log.WithField("session_id", id).Info("session cleared")
	return nil
}
