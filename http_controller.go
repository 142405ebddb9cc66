package auth

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-auth-guard/middleware/jwtware"
)

const (
	MessageLoggedOut         = "Successfully logged out"
	MessageLogoutInstruction = "Please remove the token from client storage"
	MessageNoToken           = "No valid token provided"
	MessageInvalidOrExpired  = "Invalid or expired token"
	MessageUserNotFound      = "User not found"
)

// RegisterAuthRoutes mounts login, register, verify, logout, and me on app
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Login, controller.Login).SetName("auth.login")
	app.Post(controller.Routes.Register, controller.Register).SetName("auth.register")
	app.Post(controller.Routes.Verify, controller.Verify).SetName("auth.verify")
	app.Post(controller.Routes.Logout, controller.Logout).SetName("auth.logout")
	app.Get(controller.Routes.Me, controller.Me).SetName("auth.me")

	return controller
}

type AuthControllerRoutes struct {
	Login    string
	Register string
	Verify   string
	Logout   string
	Me       string
}

type AuthController struct {
	Logger     Logger
	Routes     *AuthControllerRoutes
	Auther     Authenticator
	Tokens     TokenDecoder
	Accounts   *AccountService
	Throttle   *LoginThrottle
	Activity   ActivitySink
	AuthScheme string
	Now        func() time.Time
}

type AuthControllerOption func(*AuthController) *AuthController

// WithAuthControllerLogger sets the controller logger
func WithAuthControllerLogger(logger Logger) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Logger = resolveLogger(logger)
		return ac
	}
}

// WithAuthControllerDeps copies the collaborators out of deps
func WithAuthControllerDeps(deps HTTPDeps) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Auther = deps.Auther
		ac.Tokens = deps.Tokens
		ac.Accounts = deps.Accounts
		ac.Throttle = deps.Throttle
		ac.Activity = normalizeActivitySink(deps.ActivitySink)
		if deps.Config != nil {
			ac.AuthScheme = deps.Config.GetAuthScheme()
		}
		if deps.Now != nil {
			ac.Now = deps.Now
		}
		return ac
	}
}

// WithAuthControllerRoutes overrides the route paths
func WithAuthControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		if routes != nil {
			ac.Routes = routes
		}
		return ac
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:     defLogger{},
		Activity:   noopActivitySink{},
		AuthScheme: DefaultAuthScheme,
		Now:        time.Now,
		Routes: &AuthControllerRoutes{
			Login:    "/login",
			Register: "/register",
			Verify:   "/verify",
			Logout:   "/logout",
			Me:       "/me",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Tokens == nil {
		panic("Missing TokenDecoder in auth controller...")
	}

	if c.Accounts == nil {
		panic("Missing AccountService in auth controller...")
	}

	return c
}

// LoginRequest payload
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// LoginResponse is returned by a successful login. Token carries the auth
// scheme prefix so clients can send it back verbatim.
type LoginResponse struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	ExpiresAt int64  `json:"expiresAt"`
}

func (a *AuthController) Login(c router.Context) error {
	payload := new(LoginRequest)
	if err := c.Bind(payload); err != nil {
		return badRequest("invalid request body")
	}

	if err := payload.Validate(); err != nil {
		return invalidInput(err, "invalid login payload")
	}

	if !a.Throttle.Allow(payload.Username) {
		a.Logger.Warn("login throttled", "username", payload.Username, "path", c.Path())
		emitActivity(c.Context(), a.Activity, a.Logger, ActivityEvent{
			EventType:  ActivityEventLoginThrottled,
			Username:   payload.Username,
			Actor:      payload.Username,
			Reason:     "rate_limited",
			OccurredAt: a.Now().UTC(),
		})
		return ErrTooManyAttempts
	}

	result, err := a.Auther.Login(c.Context(), payload.Username, payload.Password, a.Now())
	if err != nil {
		return err
	}

	return c.JSON(fiber.StatusOK, LoginResponse{
		Token:     a.AuthScheme + " " + result.Token,
		Username:  result.Username,
		ExpiresAt: result.ExpiresAt.UnixMilli(),
	})
}

func (a *AuthController) Register(c router.Context) error {
	payload := new(RegisterInput)
	if err := c.Bind(payload); err != nil {
		return badRequest("invalid request body")
	}

	user, err := a.Accounts.Register(c.Context(), *payload)
	if err != nil {
		return err
	}

	return c.JSON(fiber.StatusCreated, user)
}

// VerifyResponse is the token introspection result
type VerifyResponse struct {
	Valid     bool     `json:"valid"`
	Username  string   `json:"username,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	ExpiresAt int64    `json:"expiresAt,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// Verify introspects the bearer token in the request. It runs outside the
// authorization filter so an invalid token gets a {valid:false} body.
func (a *AuthController) Verify(c router.Context) error {
	raw, state := jwtware.ExtractToken(c.Header(router.HeaderAuthorization), a.AuthScheme)
	if state != jwtware.TokenPresent {
		return c.JSON(fiber.StatusUnauthorized, VerifyResponse{
			Message: MessageNoToken,
		})
	}

	claims, err := a.Tokens.Parse(raw, a.Now())
	if err != nil {
		a.Logger.Debug("token verification failed", "error", err)
		return c.JSON(fiber.StatusUnauthorized, VerifyResponse{
			Message: MessageInvalidOrExpired,
		})
	}

	res := VerifyResponse{
		Valid:    true,
		Username: claims.Subject,
		Roles:    append([]string{}, claims.Roles...),
	}
	if claims.ExpiresAt != nil {
		res.ExpiresAt = claims.ExpiresAt.UnixMilli()
	}
	return c.JSON(fiber.StatusOK, res)
}

// Logout is a no-op on the server; tokens are stateless and the client is
// expected to discard its copy.
func (a *AuthController) Logout(c router.Context) error {
	return c.JSON(fiber.StatusOK, fiber.Map{
		"message":      MessageLoggedOut,
		"instructions": MessageLogoutInstruction,
	})
}

// MeResponse describes the caller
type MeResponse struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

func (a *AuthController) Me(c router.Context) error {
	identity, ok := IdentityFromContext(c.Context())
	if !ok {
		return ErrUnauthenticated
	}

	user, err := a.Accounts.GetUser(c.Context(), identity.Subject)
	if err != nil {
		if IsNotFound(err) {
			return c.JSON(fiber.StatusNotFound, fiber.Map{"error": MessageUserNotFound})
		}
		return err
	}

	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}

	return c.JSON(fiber.StatusOK, MeResponse{
		Username: user.Username,
		Roles:    roles,
	})
}

func trimParam(c router.Context, name string) string {
	return strings.TrimSpace(c.Param(name, ""))
}
