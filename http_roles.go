package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
)

// RolesController serves /api/roles, ADMIN only
type RolesController struct {
	Accounts *AccountService
	Logger   Logger
}

func (r *RolesController) Create(c router.Context) error {
	payload := new(RoleInput)
	if err := c.Bind(payload); err != nil {
		return badRequest("invalid request body")
	}

	role, err := r.Accounts.CreateRole(c.Context(), *payload)
	if err != nil {
		return err
	}
	return c.JSON(fiber.StatusCreated, role)
}

func (r *RolesController) List(c router.Context) error {
	roles, err := r.Accounts.ListRoles(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.StatusOK, roles)
}

func (r *RolesController) Get(c router.Context) error {
	role, err := r.Accounts.GetRole(c.Context(), trimParam(c, "name"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.StatusOK, role)
}

func (r *RolesController) Delete(c router.Context) error {
	name := trimParam(c, "name")
	if err := r.Accounts.DeleteRole(c.Context(), name); err != nil {
		return err
	}
	r.Logger.Info("role deleted", "role", name)
	return c.NoContent(fiber.StatusNoContent)
}
