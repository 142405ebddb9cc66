package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is an account record. Roles are loaded from user_roles in
// assignment order and are not a column.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,notnull" json:"id"`
	Username      string     `bun:"username,pk" json:"username"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Email         string     `bun:"email" json:"email,omitempty"`
	FirstName     string     `bun:"first_name" json:"firstName,omitempty"`
	LastName      string     `bun:"last_name" json:"lastName,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updatedAt,omitempty"`
	Roles         []string   `bun:"-" json:"roles"`
}

// Credentials projects the record to what the login flow needs
func (u *User) Credentials() Credentials {
	if u == nil {
		return Credentials{}
	}
	return Credentials{
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Roles:        append([]string{}, u.Roles...),
	}
}

// Role is a named authority
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rl"`
	ID            uuid.UUID  `bun:"id,notnull" json:"id"`
	Name          string     `bun:"name,pk" json:"name"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
}

// UserRole links a user to a role; Position keeps assignment order.
type UserRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:ur"`
	Username      string `bun:"username,pk"`
	RoleName      string `bun:"role_name,pk"`
	Position      int    `bun:"position,notnull"`
}
