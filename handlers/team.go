package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/andrewpaige1/sysviz-api/models"
	"github.com/andrewpaige1/sysviz-api/utils"
)

const maxTeamCodeAttempts = 10

var errNoFreeTeamCode = errors.New("could not find an unused team code")

// POST /api/collaboration/teams
func (db *DBHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(w, r)
	if err != nil {
		return
	}

	var req struct {
		Name string `json:"name" validate:"required,max=100"`
	}
	if err := decode(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Team name is required")
		return
	}

	code, err := db.uniqueTeamCode(r)
	if err != nil {
		db.serverError(w, "CreateTeam: failed to generate team code", err)
		return
	}

	team := models.Team{
		Name:    req.Name,
		Code:    code,
		OwnerID: user.ID,
		Members: []models.TeamMember{{UserID: user.ID, Role: models.RoleOwner}},
	}
	if err := db.WithContext(r.Context()).Create(&team).Error; err != nil {
		db.serverError(w, "CreateTeam: failed to create team", err, zap.Uint("userID", user.ID))
		return
	}

	db.logActivity(r.Context(), user.ID, models.ActionCreatedTeam,
		map[string]any{"teamId": team.ID, "name": team.Name}, "", "")

	utils.WriteJSON(w, http.StatusCreated, team)
}

// uniqueTeamCode draws codes until one is not taken.
func (db *DBHandler) uniqueTeamCode(r *http.Request) (string, error) {
	for i := 0; i < maxTeamCodeAttempts; i++ {
		code, err := utils.NewTeamCode()
		if err != nil {
			return "", err
		}
		var count int64
		if err := db.WithContext(r.Context()).Model(&models.Team{}).Where("code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", errNoFreeTeamCode
}

type teamWithRole struct {
	models.Team
	Role models.Role `json:"role"`
}

// GET /api/collaboration/teams
func (db *DBHandler) GetMyTeams(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(w, r)
	if err != nil {
		return
	}

	var teams []models.Team
	err = db.WithContext(r.Context()).
		Preload("Members").
		Where("id IN (?)", db.Model(&models.TeamMember{}).Select("team_id").Where("user_id = ?", user.ID)).
		Order("created_at desc").
		Find(&teams).Error
	if err != nil {
		db.serverError(w, "GetMyTeams: query failed", err, zap.Uint("userID", user.ID))
		return
	}

	resp := make([]teamWithRole, 0, len(teams))
	for _, team := range teams {
		role, _ := team.MemberRole(user.ID)
		resp = append(resp, teamWithRole{Team: team, Role: role})
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

// POST /api/collaboration/teams/join
func (db *DBHandler) JoinTeam(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(w, r)
	if err != nil {
		return
	}

	var req struct {
		Code string `json:"code" validate:"required"`
	}
	if err := decode(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Team code is required")
		return
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))

	var team models.Team
	err = db.WithContext(r.Context()).Preload("Members").Where("code = ?", code).First(&team).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.WriteError(w, http.StatusNotFound, "Team not found with this code")
		return
	}
	if err != nil {
		db.serverError(w, "JoinTeam: query failed", err)
		return
	}

	if _, ok := team.MemberRole(user.ID); ok {
		utils.WriteError(w, http.StatusBadRequest, "You are already a member of this team")
		return
	}

	member := models.TeamMember{TeamID: team.ID, UserID: user.ID, Role: models.RoleEditor}
	if err := db.WithContext(r.Context()).Create(&member).Error; err != nil {
		db.serverError(w, "JoinTeam: failed to add member", err, zap.Uint("teamID", team.ID))
		return
	}
	team.Members = append(team.Members, member)

	db.logActivity(r.Context(), user.ID, models.ActionJoinedTeam,
		map[string]any{"teamId": team.ID, "name": team.Name}, "", "")

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Successfully joined team",
		"team":    team,
	})
}

// POST /api/collaboration/workspaces
func (db *DBHandler) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	if _, err := currentUser(w, r); err != nil {
		return
	}

	var req struct {
		TeamID      uint   `json:"teamId" validate:"required"`
		Name        string `json:"name" validate:"required,max=100"`
		Description string `json:"description" validate:"max=500"`
	}
	if err := decode(r, &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "teamId and name are required")
		return
	}

	var count int64
	if err := db.WithContext(r.Context()).Model(&models.Team{}).Where("id = ?", req.TeamID).Count(&count).Error; err != nil {
		db.serverError(w, "CreateWorkspace: query failed", err)
		return
	}
	if count == 0 {
		utils.WriteError(w, http.StatusNotFound, "Team not found")
		return
	}

	workspace := models.Workspace{TeamID: req.TeamID, Name: req.Name, Description: req.Description}
	if err := db.WithContext(r.Context()).Create(&workspace).Error; err != nil {
		db.serverError(w, "CreateWorkspace: failed to create workspace", err, zap.Uint("teamID", req.TeamID))
		return
	}
	utils.WriteJSON(w, http.StatusCreated, workspace)
}

// GET /api/collaboration/teams/{teamId}/workspaces
func (db *DBHandler) GetWorkspacesByTeam(w http.ResponseWriter, r *http.Request) {
	teamID, ok := pathUint(r, "teamId")
	if !ok {
		utils.WriteError(w, http.StatusBadRequest, "Invalid team id")
		return
	}

	var workspaces []models.Workspace
	if err := db.WithContext(r.Context()).Where("team_id = ?", teamID).Order("created_at desc").Find(&workspaces).Error; err != nil {
		db.serverError(w, "GetWorkspacesByTeam: query failed", err, zap.Uint("teamID", teamID))
		return
	}
	utils.WriteJSON(w, http.StatusOK, workspaces)
}
