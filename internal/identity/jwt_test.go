package identity

import (
	"context"
	"testing"
	"time"

	"github.com/burnspe2144/env-reporting-backend/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTProvider_IssueAndVerify(t *testing.T) {
	p := NewJWTProvider("test-secret", time.Hour)

	token, err := p.Issue(domain.Identity{UserID: "u-1", Username: "alice", Role: "admin"})
	require.NoError(t, err)

	id, err := p.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", id.UserID)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, "admin", id.Role)
}

func TestJWTProvider_Expired(t *testing.T) {
	p := NewJWTProvider("test-secret", time.Hour)
	issuedAt := time.Now().Add(-2 * time.Hour)
	p.now = func() time.Time { return issuedAt }

	token, err := p.Issue(domain.Identity{UserID: "u-1"})
	require.NoError(t, err)

	p.now = time.Now
	_, err = p.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTProvider_WrongSecret(t *testing.T) {
	token, err := NewJWTProvider("one", time.Hour).Issue(domain.Identity{UserID: "u-1"})
	require.NoError(t, err)

	_, err = NewJWTProvider("two", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTProvider_RejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{UserID: "u-1", RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTProvider("secret", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTProvider_Garbage(t *testing.T) {
	_, err := NewJWTProvider("secret", time.Hour).Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", tok)

	tok, ok = BearerToken("bearer   xyz ")
	assert.True(t, ok)
	assert.Equal(t, "xyz", tok)

	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)
	_, ok = BearerToken("")
	assert.False(t, ok)
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), &domain.Identity{UserID: "u-1"})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u-1", id.UserID)
}
