package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
)

// RegisterAdminRoutes mounts the users, roles, and profile APIs on app,
// which is expected to be the /api group.
func RegisterAdminRoutes[T any](app router.Router[T], accounts *AccountService, logger Logger) {
	if accounts == nil {
		panic("Missing AccountService in admin routes...")
	}

	users := &UsersController{Accounts: accounts, Logger: resolveLogger(logger)}
	roles := &RolesController{Accounts: accounts, Logger: resolveLogger(logger)}
	profile := &ProfileController{Accounts: accounts, Logger: resolveLogger(logger)}

	ug := app.Group("/users")
	// role assignment routes go first so "roles" is not read as a username
	ug.Post("/roles", users.AssignRole).SetName("users.roles.assign")
	ug.Delete("/roles", users.RevokeRole).SetName("users.roles.revoke")
	ug.Post("/", users.Create).SetName("users.create")
	ug.Get("/", users.List).SetName("users.list")
	ug.Get("/:username", users.Get).SetName("users.get")
	ug.Put("/:username", users.Update).SetName("users.update")
	ug.Delete("/:username", users.Delete).SetName("users.delete")

	rg := app.Group("/roles")
	rg.Post("/", roles.Create).SetName("roles.create")
	rg.Get("/", roles.List).SetName("roles.list")
	rg.Get("/:name", roles.Get).SetName("roles.get")
	rg.Delete("/:name", roles.Delete).SetName("roles.delete")

	pg := app.Group("/profile")
	pg.Get("/", profile.Get).SetName("profile.get")
	pg.Put("/", profile.Update).SetName("profile.update")
	pg.Put("/password", profile.ChangePassword).SetName("profile.password")
}

// UsersController serves /api/users. Access control is applied by the
// authorization filter before any handler runs.
type UsersController struct {
	Accounts *AccountService
	Logger   Logger
}

func (u *UsersController) Create(c router.Context) error {
	payload := new(CreateUserInput)
	if err := c.Bind(payload); err != nil {
		return badRequest("invalid request body")
	}

	user, err := u.Accounts.CreateUser(c.Context(), *payload)
	if err != nil {
		return err
	}

	return c.JSON(fiber.StatusCreated, user)
}

func (u *UsersController) List(c router.Context) error {
	users, err := u.Accounts.ListUsers(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.StatusOK, users)
}

func (u *UsersController) Get(c router.Context) error {
	user, err := u.Accounts.GetUser(c.Context(), trimParam(c, "username"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.StatusOK, user)
}

func (u *UsersController) Update(c router.Context) error {
	payload := new(ProfileInput)
	if err := c.Bind(payload); err != nil {
		return badRequest("invalid request body")
	}

	user, err := u.Accounts.UpdateProfile(c.Context(), trimParam(c, "username"), *payload)
	if err != nil {
		return err
	}
	return c.JSON(fiber.StatusOK, user)
}

func (u *UsersController) Delete(c router.Context) error {
	if err := u.Accounts.DeleteUser(c.Context(), trimParam(c, "username")); err != nil {
		return err
	}
	return c.NoContent(fiber.StatusNoContent)
}

func (u *UsersController) AssignRole(c router.Context) error {
	payload := new(RoleAssignment)
	if err := c.Bind(payload); err != nil {
		return badRequest("invalid request body")
	}

	if err := u.Accounts.AssignRole(c.Context(), actorOf(c), *payload); err != nil {
		return err
	}

	user, err := u.Accounts.GetUser(c.Context(), payload.Username)
	if err != nil {
		return err
	}
	return c.JSON(fiber.StatusOK, user)
}

func (u *UsersController) RevokeRole(c router.Context) error {
	payload := new(RoleAssignment)
	if err := c.Bind(payload); err != nil {
		return badRequest("invalid request body")
	}

	if err := u.Accounts.RevokeRole(c.Context(), actorOf(c), *payload); err != nil {
		return err
	}

	user, err := u.Accounts.GetUser(c.Context(), payload.Username)
	if err != nil {
		return err
	}
	return c.JSON(fiber.StatusOK, user)
}

func actorOf(c router.Context) string {
	identity, _ := IdentityFromContext(c.Context())
	return identity.Subject
}
