package auth

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newService(t *testing.T) *Service {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)
	svc, err := NewService(store, Config{
		Secret: []byte("test-secret"),
		Cost:   bcrypt.MinCost,
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	return svc
}

func TestValidateSignup(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
		field    string
		msg      string
	}{
		{"short username", "ab", "a@b.co", "secret123", "username", "Username must be at least 3 characters long"},
		{"long username", strings.Repeat("a", 21), "a@b.co", "secret123", "username", "Username must be less than 20 characters"},
		{"bad chars", "bad name", "a@b.co", "secret123", "username", "Username can only contain letters, numbers, underscores, and hyphens"},
		{"bad email", "alice", "alice.example.com", "secret123", "email", "Please enter a valid email address"},
		{"long email", "alice", strings.Repeat("a", 95) + "@b.com", "secret123", "email", "Email is too long"},
		{"short password", "alice", "a@b.co", "abc1", "password", "Password must be at least 8 characters long"},
		{"no digit", "alice", "a@b.co", "abcdefgh", "password", "Password must contain at least one number"},
		{"no letter", "alice", "a@b.co", "12345678", "password", "Password must contain at least one letter"},
		{"too long", "alice", "a@b.co", strings.Repeat("a1", 40), "password", "Password is too long"},
		{"empty username", "", "a@b.co", "secret123", "username", "Username is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateSignup(tt.username, tt.email, tt.password)
			assert.Equal(t, tt.msg, errs[tt.field])
		})
	}

	assert.Empty(t, ValidateSignup("alice_01", "alice@example.com", "secret123"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "scriptalice/script", Sanitize("  <script>alice</script> "))
}

func TestSignupAndLogin(t *testing.T) {
	svc := newService(t)

	u, err := svc.Signup("Alice", "Alice@Example.com", "secret123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u.ID, "user_"))
	assert.Equal(t, "alice@example.com", u.Email)

	_, err = svc.Signup("alice", "other@example.com", "secret123")
	assert.ErrorIs(t, err, ErrUsernameTaken)
	_, err = svc.Signup("bob", "ALICE@example.com", "secret123")
	assert.ErrorIs(t, err, ErrEmailTaken)

	got, token, err := svc.Login("ALICE", "secret123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	require.NotEmpty(t, token)

	claims, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)

	_, _, err = svc.Login("alice", "wrongpass1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login("nobody", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignupValidationError(t *testing.T) {
	svc := newService(t)
	_, err := svc.Signup("a", "nope", "short")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 3)
}

func TestRequestResetDoesNotRevealAccounts(t *testing.T) {
	svc := newService(t)
	_, err := svc.Signup("alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	assert.NoError(t, svc.RequestReset("alice@example.com"))
	assert.NoError(t, svc.RequestReset("ghost@example.com"))

	var verr *ValidationError
	assert.ErrorAs(t, svc.RequestReset("not-an-email"), &verr)
}

func TestUpdatePassword(t *testing.T) {
	svc := newService(t)
	_, err := svc.Signup("alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, svc.UpdatePassword("alice@example.com", "newsecret9"))
	_, _, err = svc.Login("alice", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login("alice", "newsecret9")
	assert.NoError(t, err)

	assert.ErrorIs(t, svc.UpdatePassword("ghost@example.com", "newsecret9"), ErrUserNotFound)
}

func TestParseTokenRejectsTampering(t *testing.T) {
	svc := newService(t)
	u, err := svc.Signup("alice", "alice@example.com", "secret123")
	require.NoError(t, err)
	stored, err := svc.store.ByID(u.ID)
	require.NoError(t, err)

	token, err := svc.IssueToken(stored)
	require.NoError(t, err)

	other := newService(t)
	other.secret = []byte("different")
	_, err = other.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	svc.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	_, err = svc.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Create(User{ID: "user_1", Username: "alice", Email: "a@b.co"}))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	u, err := reopened.ByUsername("ALICE")
	require.NoError(t, err)
	assert.Equal(t, "user_1", u.ID)
}
