package auth

import (
	"context"
	"testing"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewpaige1/sysviz-api/models"
)

func newIssuer(t *testing.T) *Issuer {
	t.Helper()
	i, err := NewIssuer("test-secret", "sysviz-api", "sysviz")
	require.NoError(t, err)
	return i
}

func TestTokenRoundTrip(t *testing.T) {
	i := newIssuer(t)
	user := &models.User{Model: models.Model{ID: 42}, Username: "ada", Email: "ada@example.com"}

	token, err := i.CreateToken(user)
	require.NoError(t, err)

	v, err := i.Validator()
	require.NoError(t, err)

	got, err := v.ValidateToken(context.Background(), token)
	require.NoError(t, err)

	claims := got.(*validator.ValidatedClaims)
	assert.Equal(t, "42", claims.RegisteredClaims.Subject)
	custom := claims.CustomClaims.(*Claims)
	assert.Equal(t, "ada", custom.Name)
	assert.Equal(t, "ada@example.com", custom.Email)
}

func TestExpiredTokenRejected(t *testing.T) {
	i := newIssuer(t)
	i.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }

	token, err := i.CreateToken(&models.User{Model: models.Model{ID: 1}})
	require.NoError(t, err)

	v, err := i.Validator()
	require.NoError(t, err)
	_, err = v.ValidateToken(context.Background(), token)
	assert.Error(t, err)
}

func TestTokenFromOtherSecretRejected(t *testing.T) {
	other, err := NewIssuer("another-secret", "sysviz-api", "sysviz")
	require.NoError(t, err)
	token, err := other.CreateToken(&models.User{Model: models.Model{ID: 1}})
	require.NoError(t, err)

	v, err := newIssuer(t).Validator()
	require.NoError(t, err)
	_, err = v.ValidateToken(context.Background(), token)
	assert.Error(t, err)
}

func TestMissingSecret(t *testing.T) {
	_, err := NewIssuer("", "iss", "aud")
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)
	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "hunter3"))
}
