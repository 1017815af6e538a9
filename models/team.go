package models

type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Team groups users who share designs through an invite code
type Team struct {
	Model
	Name    string       `gorm:"not null;size:100" json:"name"`
	Code    string       `gorm:"not null;uniqueIndex;size:8" json:"code"`
	OwnerID uint         `gorm:"not null;index" json:"owner_id"`
	Members []TeamMember `gorm:"foreignKey:TeamID" json:"members"`
}

type TeamMember struct {
	Model
	TeamID uint `gorm:"not null;uniqueIndex:idx_team_member" json:"team_id"`
	UserID uint `gorm:"not null;uniqueIndex:idx_team_member" json:"user_id"`
	Role   Role `gorm:"not null;size:10;default:viewer" json:"role"`
}

// MemberRole returns the role userID holds in the team, if any.
func (t *Team) MemberRole(userID uint) (Role, bool) {
	for _, m := range t.Members {
		if m.UserID == userID {
			return m.Role, true
		}
	}
	return "", false
}

// Workspace is a named collaboration area inside a team
type Workspace struct {
	Model
	TeamID      uint   `gorm:"not null;index" json:"team_id"`
	Name        string `gorm:"not null;size:100" json:"name"`
	Description string `gorm:"size:500" json:"description"`
}
