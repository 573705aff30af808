package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/jobboard/pkg/logger"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func idToken(t *testing.T, claims IDTokenClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("provider-key"))
	require.NoError(t, err)
	return raw
}

func claimsFor(sub string, exp time.Time) IDTokenClaims {
	return IDTokenClaims{
		Email: sub + "@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://accounts.example.com",
			Subject:   sub,
			Audience:  jwt.ClaimStrings{"jobboard"},
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
}

func newManager(t *testing.T, store Store, now *time.Time) *Manager {
	t.Helper()
	m, err := NewManager(store, Blake2bDeriver{Salt: []byte("salt")}, ManagerConfig{
		TTL:    time.Hour,
		Logger: logger.NewDiscard(),
		Now:    func() time.Time { return *now },
	})
	require.NoError(t, err)
	return m
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore()
	now := testNow
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, s.Set(ctx, "forever", []byte("v"), 0))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(time.Minute)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, "forever")
	assert.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "forever"))
	_, err = s.Get(ctx, "forever")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseIDToken(t *testing.T) {
	claims, err := ParseIDToken(idToken(t, claimsFor("alice", testNow.Add(time.Hour))))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Email)

	_, err = ParseIDToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseIDToken(idToken(t, IDTokenClaims{Email: "x"}))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBlake2bDeriver_Stable(t *testing.T) {
	d := Blake2bDeriver{Salt: []byte("salt")}
	alice := claimsFor("alice", testNow)
	ctx := context.Background()

	a1, err := d.DeriveAddress(ctx, &alice)
	require.NoError(t, err)
	a2, err := d.DeriveAddress(ctx, &alice)
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
	assert.Len(t, a1, 66)

	bob := claimsFor("bob", testNow)
	b, err := d.DeriveAddress(ctx, &bob)
	require.NoError(t, err)
	assert.NotEqual(t, a1, b)

	other, err := Blake2bDeriver{Salt: []byte("pepper")}.DeriveAddress(ctx, &alice)
	require.NoError(t, err)
	assert.NotEqual(t, a1, other)

	_, err = d.DeriveAddress(ctx, &IDTokenClaims{})
	assert.Error(t, err)
}

func TestManager_Lifecycle(t *testing.T) {
	now := testNow
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	m := newManager(t, store, &now)
	ctx := context.Background()

	s, err := m.Login(ctx, idToken(t, claimsFor("alice", now.Add(4*time.Hour))))
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.True(t, s.ExpiresAt.Equal(now.Add(time.Hour)))

	got, err := m.Session(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Address, got.Address)

	require.NoError(t, m.Logout(ctx, s.ID))
	_, err = m.Session(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.NoError(t, m.Logout(ctx, s.ID))
}

func TestManager_TokenExpiryBoundsSession(t *testing.T) {
	now := testNow
	store := NewMemoryStore()
	store.now = func() time.Time { return now }
	m := newManager(t, store, &now)
	ctx := context.Background()

	s, err := m.Login(ctx, idToken(t, claimsFor("alice", now.Add(10*time.Minute))))
	require.NoError(t, err)
	assert.True(t, s.ExpiresAt.Equal(now.Add(10*time.Minute)))

	now = now.Add(11 * time.Minute)
	_, err = m.Session(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = m.Login(ctx, idToken(t, claimsFor("alice", now.Add(-time.Second))))
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestManager_SameIdentitySameAddress(t *testing.T) {
	now := testNow
	m := newManager(t, NewMemoryStore(), &now)
	ctx := context.Background()

	s1, err := m.Login(ctx, idToken(t, claimsFor("alice", now.Add(time.Hour))))
	require.NoError(t, err)
	s2, err := m.Login(ctx, idToken(t, claimsFor("alice", now.Add(2*time.Hour))))
	require.NoError(t, err)

	assert.NotEqual(t, s1.ID, s2.ID)
	assert.Equal(t, s1.Address, s2.Address)
}

func TestManager_UnknownSession(t *testing.T) {
	now := testNow
	m := newManager(t, NewMemoryStore(), &now)

	_, err := m.Session(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = m.Session(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRedisStore_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	s := NewRedisStoreFromClient(client, "test:")
	defer s.Close()

	assert.Equal(t, "test:session:x", s.key(sessionKey("x")))

	_, err := s.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Error(t, s.Ping(context.Background()))
}
