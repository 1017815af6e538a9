package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/andrewpaige1/sysviz-api/auth"
	"github.com/andrewpaige1/sysviz-api/middleware"
	"github.com/andrewpaige1/sysviz-api/models"
	"github.com/andrewpaige1/sysviz-api/utils"
)

type DBHandler struct {
	*gorm.DB
	Log    *zap.Logger
	Issuer *auth.Issuer
}

var errNoUser = errors.New("no user in request context")

// decode reads a JSON body into v and runs its validate tags.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return utils.Validate.Struct(v)
}

func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, error) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "User not authenticated")
		return nil, errNoUser
	}
	return user, nil
}

func pathUint(r *http.Request, name string) (uint, bool) {
	v, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(v), true
}

// logActivity appends an audit entry. Failures are logged and otherwise
// ignored so they never fail the request that caused them.
func (db *DBHandler) logActivity(ctx context.Context, userID uint, action string, details map[string]any, designID, workspaceID string) {
	entry := models.Activity{
		UserID:      userID,
		Action:      action,
		Details:     details,
		DesignID:    designID,
		WorkspaceID: workspaceID,
	}
	if err := db.WithContext(ctx).Create(&entry).Error; err != nil {
		db.Log.Warn("Failed to log activity",
			zap.Uint("userID", userID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

func (db *DBHandler) serverError(w http.ResponseWriter, msg string, err error, fields ...zap.Field) {
	db.Log.Error(msg, append(fields, zap.Error(err))...)
	utils.WriteError(w, http.StatusInternalServerError, "Server error")
}
