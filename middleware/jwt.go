package middleware

import (
	"net/http"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"go.uber.org/zap"

	"github.com/andrewpaige1/sysviz-api/auth"
	"github.com/andrewpaige1/sysviz-api/utils"
)

// EnsureValidToken validates a bearer token when one is present. Requests
// without a token pass through so public routes keep working; handlers
// that need a user are wrapped in RequireUser.
func EnsureValidToken(issuer *auth.Issuer, logger *zap.Logger) (func(http.Handler) http.Handler, error) {
	v, err := issuer.Validator()
	if err != nil {
		return nil, err
	}

	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Debug("Rejected token", zap.String("path", r.URL.Path), zap.Error(err))
		utils.WriteError(w, http.StatusUnauthorized, "Invalid token")
	}

	mw := jwtmiddleware.New(
		v.ValidateToken,
		jwtmiddleware.WithCredentialsOptional(true),
		jwtmiddleware.WithErrorHandler(errorHandler),
	)

	return mw.CheckJWT, nil
}
