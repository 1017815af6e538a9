package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/andrewpaige1/sysviz-api/graph"
	"github.com/andrewpaige1/sysviz-api/utils"
)

// Workspace ids a client uses before its design has been stored.
const (
	WorkspaceNew     = "new"
	WorkspaceDefault = "default"
)

// IsUnsavedWorkspace reports whether id is a placeholder rather than a
// stored design id.
func IsUnsavedWorkspace(id string) bool {
	return id == "" || id == WorkspaceNew || id == WorkspaceDefault
}

// Design is a persisted snapshot of one workspace graph
type Design struct {
	ID          string         `gorm:"primaryKey;size:36" json:"id"`
	WorkspaceID string         `gorm:"index;size:100" json:"workspace_id,omitempty"`
	TeamID      *uint          `gorm:"index" json:"team_id,omitempty"`
	Name        string         `gorm:"not null;size:200" json:"name"`
	Data        graph.Document `gorm:"type:text;serializer:json;not null" json:"data"`
	IsPublic    bool           `gorm:"default:false" json:"is_public"`
	PublicID    string         `gorm:"size:64;uniqueIndex" json:"public_id"`
	CreatedBy   uint           `gorm:"not null;index" json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// BeforeCreate assigns the storage id and the share id, so every stored
// design has a public_id from the start.
func (d *Design) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.Data = d.Data.Normalize()
	return d.EnsurePublicID()
}

// EnsurePublicID fills in a share id for rows created before public ids
// were assigned at insert time. An existing id is never replaced.
func (d *Design) EnsurePublicID() error {
	if d.PublicID != "" {
		return nil
	}
	id, err := utils.NewPublicID()
	if err != nil {
		return err
	}
	d.PublicID = id
	return nil
}
