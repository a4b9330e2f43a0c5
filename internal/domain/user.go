package domain

import "time"

// Role names stored in users.role.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the account that authors reviews. Credentials live outside this
// service; only the identifier and role are consumed here.
type User struct {
	ID        string
	Username  string
	Email     string
	Role      string
	CreatedAt time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
