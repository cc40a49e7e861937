package domain

import "time"

// Role enumerates coarse principal roles supplied by the identity provider.
type Role string

const (
	RoleClient   Role = "client"
	RoleAgent    Role = "agent"
	RoleEngineer Role = "engineer"
	RoleAdmin    Role = "admin"
)

// User is the read-side projection of the identity provider, used for
// email-to-user watcher resolution and reporter validation. Credentials are
// not managed here.
type User struct {
	ID        string
	TenantID  string
	Name      string
	Email     string
	Internal  bool
	Role      Role
	ClientID  *string
	CreatedAt time.Time
}
