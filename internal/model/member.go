package model

import "time"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// Contact is how a member prefers to be reached.
type Contact struct {
	Type  string `json:"type"` // email, phone, telegram
	Value string `json:"value"`
}

// TeamMember is a person on a team roster.
type TeamMember struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	TeamID     string    `gorm:"index" json:"teamId"`
	Name       string    `json:"name"`
	Avatar     string    `json:"avatar,omitempty"`
	Role       Role      `gorm:"default:member" json:"role"`
	Email      string    `json:"email,omitempty"`
	Contact    Contact   `gorm:"serializer:json" json:"contact"`
	TelegramID int64     `gorm:"index" json:"telegramId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"-"`
}

// Ref is the assignee copy stored on tasks.
func (m TeamMember) Ref() Assignee {
	return Assignee{ID: m.ID, Name: m.Name}
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleMember:
		return true
	}
	return false
}
