package auth

// Identity is the authenticated principal for a single request. It is built
// from verified token claims and never persisted.
type Identity struct {
	Subject string   `json:"username"`
	Roles   []string `json:"roles"`
}

// NewIdentity copies roles so callers cannot mutate the identity afterwards
func NewIdentity(subject string, roles []string) Identity {
	return Identity{
		Subject: subject,
		Roles:   append([]string{}, roles...),
	}
}

func (i Identity) GetSubject() string {
	return i.Subject
}

func (i Identity) GetRoles() []string {
	return append([]string{}, i.Roles...)
}

// IsZero reports an anonymous identity
func (i Identity) IsZero() bool {
	return i.Subject == ""
}

func (i Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the identity holds at least one of roles
func (i Identity) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if i.HasRole(role) {
			return true
		}
	}
	return false
}
