package models

import "time"

const (
	ActionCreatedDesign     = "created_design"
	ActionUpdatedDesign     = "updated_design"
	ActionPublishedDesign   = "published_design"
	ActionUnpublishedDesign = "unpublished_design"
	ActionCreatedTeam       = "created_team"
	ActionJoinedTeam        = "joined_team"
)

// Activity is an append-only audit entry. Rows are never updated or deleted.
type Activity struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"not null;index" json:"user_id"`
	Action      string         `gorm:"not null;size:50" json:"action"`
	Details     map[string]any `gorm:"type:text;serializer:json" json:"details,omitempty"`
	DesignID    string         `gorm:"index;size:36" json:"design_id,omitempty"`
	WorkspaceID string         `gorm:"size:100" json:"workspace_id,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
