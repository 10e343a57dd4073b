package models

import "time"

// User represents an application user stored in the users table.
type User struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	Email          string    `db:"email" json:"email"`
	PasswordHash   string    `db:"password_hash" json:"-"`
	FullName       string    `db:"full_name" json:"full_name"`
	SuperAdmin     bool      `db:"super_admin" json:"super_admin"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Team groups users inside an organization.
type Team struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	Name           string    `db:"name" json:"name"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Actor is the resolved per-request identity passed explicitly into every
// service call. There is no ambient current-user state anywhere else.
type Actor struct {
	UserID         string
	OrganizationID string
	TeamIDs        []string
	SuperAdmin     bool
}

// InTeam reports whether the actor belongs to the given team.
func (a *Actor) InTeam(teamID string) bool {
	if a == nil || teamID == "" {
		return false
	}
	for _, id := range a.TeamIDs {
		if id == teamID {
			return true
		}
	}
	return false
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
