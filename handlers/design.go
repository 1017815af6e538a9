package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/andrewpaige1/sysviz-api/graph"
	"github.com/andrewpaige1/sysviz-api/models"
	"github.com/andrewpaige1/sysviz-api/utils"
)

const defaultDesignName = "Untitled Design"

// POST /api/designs
func (db *DBHandler) CreateDesign(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(w, r)
	if err != nil {
		return
	}

	// Older clients send snake_case ids
	var req struct {
		Name           string         `json:"name" validate:"max=200"`
		WorkspaceID    string         `json:"workspaceId"`
		WorkspaceIDOld string         `json:"workspace_id"`
		TeamID         *uint          `json:"teamId"`
		TeamIDOld      *uint          `json:"team_id"`
		Data           graph.Document `json:"data"`
	}
	if err := decode(r, &req); err != nil {
		db.Log.Debug("CreateDesign: invalid request body", zap.Error(err))
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	design := models.Design{
		WorkspaceID: req.WorkspaceID,
		TeamID:      req.TeamID,
		Name:        req.Name,
		Data:        req.Data,
		CreatedBy:   user.ID,
	}
	if design.WorkspaceID == "" {
		design.WorkspaceID = req.WorkspaceIDOld
	}
	if design.TeamID == nil {
		design.TeamID = req.TeamIDOld
	}
	if design.Name == "" {
		design.Name = defaultDesignName
	}

	if err := db.WithContext(r.Context()).Create(&design).Error; err != nil {
		db.serverError(w, "CreateDesign: failed to create design", err, zap.Uint("userID", user.ID))
		return
	}

	db.logActivity(r.Context(), user.ID, models.ActionCreatedDesign,
		map[string]any{"designId": design.ID, "name": design.Name},
		design.ID, design.WorkspaceID)

	db.Log.Info("Design created",
		zap.String("designID", design.ID),
		zap.Uint("userID", user.ID),
		zap.Int("nodes", len(design.Data.Nodes)),
	)
	utils.WriteJSON(w, http.StatusCreated, design)
}

// PUT /api/designs/{id}
// Replaces the graph and optionally the name. Sharing fields are left alone.
func (db *DBHandler) UpdateDesign(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(w, r)
	if err != nil {
		return
	}
	designID := r.PathValue("id")

	var req struct {
		Name string          `json:"name" validate:"max=200"`
		Data *graph.Document `json:"data"`
	}
	if err := decode(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	design, ok := db.findDesign(w, r, designID)
	if !ok {
		return
	}

	columns := []string{"UpdatedAt"}
	if req.Data != nil {
		design.Data = req.Data.Normalize()
		columns = append(columns, "Data")
	}
	if req.Name != "" {
		design.Name = req.Name
		columns = append(columns, "Name")
	}
	if design.PublicID == "" {
		if err := design.EnsurePublicID(); err != nil {
			db.serverError(w, "UpdateDesign: failed to generate public id", err)
			return
		}
		columns = append(columns, "PublicID")
	}

	if err := db.WithContext(r.Context()).Model(design).Select(columns).Updates(design).Error; err != nil {
		db.serverError(w, "UpdateDesign: failed to update design", err, zap.String("designID", designID))
		return
	}

	db.logActivity(r.Context(), user.ID, models.ActionUpdatedDesign,
		map[string]any{"designId": design.ID, "name": design.Name},
		design.ID, design.WorkspaceID)

	utils.WriteJSON(w, http.StatusOK, design)
}

// GET /api/designs/{id}
func (db *DBHandler) GetDesignByID(w http.ResponseWriter, r *http.Request) {
	design, ok := db.findDesign(w, r, r.PathValue("id"))
	if !ok {
		return
	}

	if design.PublicID == "" {
		if err := db.backfillPublicID(r, design); err != nil {
			db.serverError(w, "GetDesignByID: failed to backfill public id", err, zap.String("designID", design.ID))
			return
		}
	}

	utils.WriteJSON(w, http.StatusOK, design)
}

// GET /api/designs/mine
func (db *DBHandler) GetMyDesigns(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(w, r)
	if err != nil {
		return
	}

	var designs []models.Design
	if err := db.WithContext(r.Context()).Where("created_by = ?", user.ID).Order("updated_at desc").Find(&designs).Error; err != nil {
		db.serverError(w, "GetMyDesigns: query failed", err, zap.Uint("userID", user.ID))
		return
	}
	utils.WriteJSON(w, http.StatusOK, designs)
}

// GET /api/designs/team/{teamId}
func (db *DBHandler) GetDesignsByTeam(w http.ResponseWriter, r *http.Request) {
	teamID, ok := pathUint(r, "teamId")
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "Invalid team id")
		return
	}

	var designs []models.Design
	if err := db.WithContext(r.Context()).Where("team_id = ?", teamID).Order("updated_at desc").Find(&designs).Error; err != nil {
		db.serverError(w, "GetDesignsByTeam: query failed", err, zap.Uint("teamID", teamID))
		return
	}
	utils.WriteJSON(w, http.StatusOK, designs)
}

// GET /api/designs/workspace/{workspaceId}
func (db *DBHandler) GetDesignsByWorkspace(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspaceId")

	var designs []models.Design
	if err := db.WithContext(r.Context()).Where("workspace_id = ?", workspaceID).Order("updated_at desc").Find(&designs).Error; err != nil {
		db.serverError(w, "GetDesignsByWorkspace: query failed", err, zap.String("workspaceID", workspaceID))
		return
	}
	utils.WriteJSON(w, http.StatusOK, designs)
}

// GET /api/designs/public/{publicId}
// No token needed; only designs currently shared are visible.
func (db *DBHandler) GetPublicDesign(w http.ResponseWriter, r *http.Request) {
	publicID := r.PathValue("publicId")

	var design models.Design
	err := db.WithContext(r.Context()).Where("public_id = ? AND is_public = ?", publicID, true).First(&design).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.WriteError(w, http.StatusNotFound, "Shared design not found or private")
		return
	}
	if err != nil {
		db.serverError(w, "GetPublicDesign: query failed", err, zap.String("publicID", publicID))
		return
	}
	utils.WriteJSON(w, http.StatusOK, design)
}

// POST /api/designs/{id}/share
func (db *DBHandler) ShareDesign(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(w, r)
	if err != nil {
		return
	}

	var req struct {
		IsPublic *bool `json:"isPublic" validate:"required"`
	}
	if err := decode(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "isPublic is required")
		return
	}

	design, ok := db.findDesign(w, r, r.PathValue("id"))
	if !ok {
		return
	}

	if design.CreatedBy != user.ID {
		db.Log.Info("ShareDesign: rejected non-owner",
			zap.String("designID", design.ID),
			zap.Uint("userID", user.ID),
		)
		utils.WriteError(w, http.StatusForbidden, "Not authorized to share this design")
		return
	}

	if err := design.EnsurePublicID(); err != nil {
		db.serverError(w, "ShareDesign: failed to generate public id", err)
		return
	}
	design.IsPublic = *req.IsPublic

	err = db.WithContext(r.Context()).Model(design).Updates(map[string]any{
		"is_public": design.IsPublic,
		"public_id": design.PublicID,
	}).Error
	if err != nil {
		db.serverError(w, "ShareDesign: failed to update design", err, zap.String("designID", design.ID))
		return
	}

	action := models.ActionUnpublishedDesign
	if design.IsPublic {
		action = models.ActionPublishedDesign
	}
	db.logActivity(r.Context(), user.ID, action,
		map[string]any{"designId": design.ID, "name": design.Name},
		design.ID, design.WorkspaceID)

	utils.WriteJSON(w, http.StatusOK, design)
}

func (db *DBHandler) findDesign(w http.ResponseWriter, r *http.Request, id string) (*models.Design, bool) {
	var design models.Design
	err := db.WithContext(r.Context()).Where("id = ?", id).First(&design).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.WriteError(w, http.StatusNotFound, "Design not found")
		return nil, false
	}
	if err != nil {
		db.serverError(w, "failed to load design", err, zap.String("designID", id))
		return nil, false
	}
	return &design, true
}

// backfillPublicID gives a legacy row its share id on first read.
func (db *DBHandler) backfillPublicID(r *http.Request, design *models.Design) error {
	if err := design.EnsurePublicID(); err != nil {
		return err
	}
	return db.WithContext(r.Context()).Model(design).UpdateColumn("public_id", design.PublicID).Error
}
