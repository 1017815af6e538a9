package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", ":memory:")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("APP_ENV", "")
	t.Setenv("RELAY_DISCONNECT_SCOPE", "")
	t.Setenv("JWT_ISSUER", "")
	t.Setenv("JWT_AUDIENCE", "")

	env, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, env.Port)
	assert.Equal(t, DefaultJWTIssuer, env.JWTIssuer)
	assert.Equal(t, DefaultJWTAudience, env.JWTAudience)
	assert.Equal(t, []string{"http://localhost:3000"}, env.AllowedOrigins)
	assert.Equal(t, "global", env.DisconnectScope)
	assert.False(t, env.Development)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_URL", "postgres://localhost/sysviz")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("APP_ENV", "development")
	t.Setenv("RELAY_DISCONNECT_SCOPE", "workspace")

	env, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/sysviz", env.DatabaseURL)
	assert.Equal(t, 9090, env.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, env.AllowedOrigins)
	assert.True(t, env.Development)
	assert.Equal(t, "workspace", env.DisconnectScope)
}

func TestLoadMissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		dbURL   string
		secret  string
		wantErr error
	}{
		{name: "no database", secret: "x", wantErr: ErrMissingDatabaseURL},
		{name: "no secret", dbURL: ":memory:", wantErr: ErrMissingJWTSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", tt.dbURL)
			t.Setenv("DB_URL", "")
			t.Setenv("JWT_SECRET", tt.secret)

			_, err := Load()
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("DATABASE_URL", ":memory:")
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("PORT", "eighty")

	_, err := Load()
	assert.Error(t, err)
}

func TestConnectMemory(t *testing.T) {
	db, err := Connect(":memory:", zap.NewNop())
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable("designs"))
	assert.True(t, db.Migrator().HasTable("team_members"))
}

func TestConnectUnsupported(t *testing.T) {
	_, err := Connect("mysql://nope", zap.NewNop())
	assert.Error(t, err)
}
