package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	auth "github.com/goliatone/go-auth-guard"
)

func TestValidateRoleName(t *testing.T) {
	valid := []string{"ADMIN", "a", strings.Repeat("R", 50), "  AUDITOR  ", "ÉDITEUR"}
	for _, name := range valid {
		assert.NoError(t, auth.ValidateRoleName(name), name)
	}

	invalid := []string{"", "   ", strings.Repeat("R", 51)}
	for _, name := range invalid {
		assert.Error(t, auth.ValidateRoleName(name), name)
	}
}

func TestNormalizeRoles(t *testing.T) {
	got := auth.NormalizeRoles([]string{" ORDINARY", "ADMIN", "", "ORDINARY", "  ", "AUDITOR"})
	assert.Equal(t, []string{"ORDINARY", "ADMIN", "AUDITOR"}, got)

	assert.Empty(t, auth.NormalizeRoles(nil))
}

func TestBuiltinRoles(t *testing.T) {
	assert.Equal(t, []string{auth.RoleAdmin, auth.RoleOrdinary}, auth.BuiltinRoles())
	assert.Equal(t, auth.RoleOrdinary, auth.DefaultRole)
}
