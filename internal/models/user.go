package models

import "time"

// Role is the account role of a library user.
type Role string

const (
	RoleStudent   Role = "student"
	RoleLibrarian Role = "librarian"
	RoleAdmin     Role = "admin"
)

// IsStaff reports whether the role may answer support sessions.
func (r Role) IsStaff() bool {
	return r == RoleLibrarian || r == RoleAdmin
}

// User is the account view the chat core needs.
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}
