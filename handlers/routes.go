package handlers

import (
	"net/http"
)

// RegisterRoutes mounts the REST API on mux. requireUser wraps every
// route that needs a signed-in user.
func RegisterRoutes(mux *http.ServeMux, h *DBHandler, requireUser func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("GET /health", h.Health)

	// Auth
	mux.HandleFunc("POST /api/auth/register", h.Register)
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("GET /api/auth/me", requireUser(h.GetMe))

	// Designs
	mux.HandleFunc("POST /api/designs", requireUser(h.CreateDesign))
	mux.HandleFunc("GET /api/designs/mine", requireUser(h.GetMyDesigns))
	mux.HandleFunc("GET /api/designs/team/{teamId}", requireUser(h.GetDesignsByTeam))
	mux.HandleFunc("GET /api/designs/workspace/{workspaceId}", requireUser(h.GetDesignsByWorkspace))
	mux.HandleFunc("GET /api/designs/public/{publicId}", h.GetPublicDesign)
	mux.HandleFunc("GET /api/designs/{id}", requireUser(h.GetDesignByID))
	mux.HandleFunc("PUT /api/designs/{id}", requireUser(h.UpdateDesign))
	mux.HandleFunc("POST /api/designs/{id}/share", requireUser(h.ShareDesign))

	// Teams and workspaces
	mux.HandleFunc("POST /api/collaboration/teams", requireUser(h.CreateTeam))
	mux.HandleFunc("GET /api/collaboration/teams", requireUser(h.GetMyTeams))
	mux.HandleFunc("POST /api/collaboration/teams/join", requireUser(h.JoinTeam))
	mux.HandleFunc("POST /api/collaboration/workspaces", requireUser(h.CreateWorkspace))
	mux.HandleFunc("GET /api/collaboration/teams/{teamId}/workspaces", requireUser(h.GetWorkspacesByTeam))

	// Activity
	mux.HandleFunc("GET /api/activity", requireUser(h.GetActivities))
}
