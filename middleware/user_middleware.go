package middleware

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/andrewpaige1/sysviz-api/models"
	"github.com/andrewpaige1/sysviz-api/utils"
)

type contextKey string

const userKey contextKey = "user"

// UserLoader resolves the token subject into a stored user.
type UserLoader struct {
	DB  *gorm.DB
	Log *zap.Logger
}

// RequireUser ensures the request carries a valid token whose user still
// exists, and attaches that user to the context.
func (l *UserLoader) RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := utils.GetUserID(r)
		if !ok {
			utils.WriteError(w, http.StatusUnauthorized, "No token, authorization denied")
			return
		}

		var user models.User
		if err := l.DB.WithContext(r.Context()).First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.WriteError(w, http.StatusUnauthorized, "Token is not valid")
				return
			}
			l.Log.Error("Failed to load user", zap.Uint("userID", userID), zap.Error(err))
			utils.WriteError(w, http.StatusInternalServerError, "Server error")
			return
		}

		ctx := context.WithValue(r.Context(), userKey, &user)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// UserFromContext returns the user attached by RequireUser.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok && user != nil
}
