// Package membership holds project membership records and the invitation
// acceptance state machine.
package membership

import "time"

// Role is the access level granted by a membership record.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleWrite Role = "write"
	RoleRead  Role = "read"
)

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleWrite, RoleRead:
		return true
	}
	return false
}

// Status is the invitation lifecycle state. Anything outside the closed set
// is treated as corrupt, distinct from the three known states.
type Status string

const (
	StatusInvited  Status = "invited"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// Invitation is a project membership record. Status transitions only
// invited→accepted or invited→declined; both are terminal. JoinedAt is null
// until the record transitions to accepted and immutable thereafter.
type Invitation struct {
	ID            string     `json:"id"`
	ProjectID     string     `json:"project_id"`
	InvitedUserID string     `json:"invited_user_id"`
	Role          Role       `json:"role"`
	Status        Status     `json:"status"`
	JoinedAt      *time.Time `json:"joined_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Project is the resource a membership record grants access to.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// User is the minimal account record needed to issue sessions.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
