package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/andrewpaige1/sysviz-api/models"
	"github.com/andrewpaige1/sysviz-api/utils"
)

const activityPageSize = 50

// GET /api/activity?designId=
func (db *DBHandler) GetActivities(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(w, r)
	if err != nil {
		return
	}

	query := db.WithContext(r.Context()).Where("user_id = ?", user.ID)
	if designID := r.URL.Query().Get("designId"); designID != "" {
		query = query.Where("design_id = ?", designID)
	}

	var activities []models.Activity
	if err := query.Order("created_at desc, id desc").Limit(activityPageSize).Find(&activities).Error; err != nil {
		db.serverError(w, "GetActivities: query failed", err, zap.Uint("userID", user.ID))
		return
	}
	utils.WriteJSON(w, http.StatusOK, activities)
}
