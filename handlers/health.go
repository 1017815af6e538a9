package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/andrewpaige1/sysviz-api/utils"
)

// GET /health
func (db *DBHandler) Health(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := db.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		db.Log.Warn("Health check failed", zap.Error(err))
		utils.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
