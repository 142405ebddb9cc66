package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-auth-guard/middleware/jwtware"
)

// HTTPDeps wires NewHTTPServer
type HTTPDeps struct {
	Config   Config
	Tokens   TokenDecoder
	Auther   Authenticator
	Accounts *AccountService
	Policy   *AccessPolicy
	Throttle *LoginThrottle
	Logger   Logger
	Now      func() time.Time

	// ActivitySink records throttled logins
	ActivitySink ActivitySink
	// AllowOrigins is a comma separated CORS origin list; empty disables CORS
	AllowOrigins string
}

// NewHTTPServer returns a go-router server over fiber serving the auth,
// users, roles, and profile APIs behind the authorization filter.
func NewHTTPServer(deps HTTPDeps) router.Server[*fiber.App] {
	logger := resolveLogger(deps.Logger)
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Policy == nil {
		deps.Policy = MustAccessPolicy(DefaultRules()...)
	}

	server := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		app := fiber.New(fiber.Config{
			AppName:               "authd",
			DisableStartupMessage: true,
			// the access policy matches case-folded paths, routes must not
			CaseSensitive: true,
			ErrorHandler:  NewErrorHandler(logger),
		})

		app.Use(recover.New())

		if deps.AllowOrigins != "" {
			app.Use(cors.New(cors.Config{
				AllowOrigins:  deps.AllowOrigins,
				AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
				AllowMethods:  "GET,POST,PUT,DELETE,OPTIONS",
				ExposeHeaders: fiber.HeaderAuthorization,
			}))
		}

		app.Use(NewAuthMiddleware(deps.Config, deps.Tokens, deps.Policy, logger, "/api/auth/verify"))
		return app
	})

	r := server.Router()

	r.Get("/health", func(c router.Context) error {
		return c.JSON(fiber.StatusOK, fiber.Map{"status": "ok"})
	}).SetName("health")

	RegisterAuthRoutes(r.Group("/api/auth"),
		WithAuthControllerLogger(logger),
		WithAuthControllerDeps(deps),
	)

	RegisterAdminRoutes(r.Group("/api"), deps.Accounts, logger)

	return server
}

// NewHTTPApp is NewHTTPServer's underlying fiber app
func NewHTTPApp(deps HTTPDeps) *fiber.App {
	return NewHTTPServer(deps).WrappedRouter()
}

// NewErrorHandler renders errors as {"error": message}. Token failures are
// collapsed so callers cannot tell a forged token from an expired one.
func NewErrorHandler(logger Logger) fiber.ErrorHandler {
	logger = resolveLogger(logger)
	return func(c *fiber.Ctx, err error) error {
		status, body := HTTPError(err)

		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		} else {
			var rich *errors.Error
			if errors.As(err, &rich) {
				logger.Debug("request rejected",
					"method", c.Method(),
					"path", c.Path(),
					"status", status,
					"error", rich,
					"details", print.MaybePrettyJSON(rich.Metadata),
				)
			}
		}

		return c.Status(status).JSON(body)
	}
}

// HTTPError maps err to a status code and a response body
func HTTPError(err error) (int, fiber.Map) {
	if err == nil {
		return fiber.StatusOK, fiber.Map{}
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fiber.Map{"error": fe.Message}
	}

	if IsTokenError(err) ||
		errors.Is(err, ErrEmptyToken) ||
		errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrInsufficientRole) {
		status, message := jwtware.PublicError(err)
		return status, fiber.Map{"error": message}
	}

	var rich *errors.Error
	if !errors.As(err, &rich) {
		return fiber.StatusInternalServerError, fiber.Map{"error": jwtware.MessageInternal}
	}

	if rich.Category == errors.CategoryValidation {
		body := fiber.Map{"error": rich.Message}
		if fields := rich.ValidationMap(); len(fields) > 0 {
			body["fields"] = fields
		}
		return fiber.StatusBadRequest, body
	}

	status := rich.Code
	if status == 0 {
		status = statusForCategory(rich.Category)
	}

	if status >= fiber.StatusInternalServerError {
		return fiber.StatusInternalServerError, fiber.Map{"error": jwtware.MessageInternal}
	}

	return status, fiber.Map{"error": rich.Message}
}

func statusForCategory(category errors.Category) int {
	switch category {
	case errors.CategoryAuth:
		return fiber.StatusUnauthorized
	case errors.CategoryAuthz:
		return fiber.StatusForbidden
	case errors.CategoryNotFound:
		return fiber.StatusNotFound
	case errors.CategoryConflict:
		return fiber.StatusConflict
	case errors.CategoryBadInput, errors.CategoryValidation:
		return fiber.StatusBadRequest
	case errors.CategoryRateLimit:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

func badRequest(message string) error {
	return errors.New(message, errors.CategoryBadInput).WithCode(errors.CodeBadRequest)
}
