package auth

import (
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	RoleAdmin    = "ADMIN"
	RoleOrdinary = "ORDINARY"

	// DefaultRole is assigned to accounts created without explicit roles
	DefaultRole = RoleOrdinary

	MaxRoleNameLength = 50
)

// BuiltinRoles are seeded by the database migrations
func BuiltinRoles() []string {
	return []string{RoleAdmin, RoleOrdinary}
}

var roleNameRules = []validation.Rule{
	validation.Required.Error("role name must not be blank"),
	validation.By(func(value any) error {
		s, _ := value.(string)
		if n := utf8.RuneCountInString(s); n < 1 || n > MaxRoleNameLength {
			return validation.NewError("validation_role_length", "role name must be between 1 and 50 characters")
		}
		return nil
	}),
}

// ValidateRoleName checks that name is non blank and 1 to 50 characters
// long once trimmed.
func ValidateRoleName(name string) error {
	return validation.Validate(strings.TrimSpace(name), roleNameRules...)
}

// NormalizeRoles trims names, drops blanks, and removes duplicates while
// keeping the first occurrence order.
func NormalizeRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
