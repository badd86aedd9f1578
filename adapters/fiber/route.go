package fiber

import (
	"github.com/gofiber/fiber/v3"

	"github.com/bastion-dev/bastion"
)

type Adapter struct {
	app *fiber.App
	b   *bastion.Bastion
}

var _ bastion.HTTPAdapter = (*Adapter)(nil)

func New(app *fiber.App) *Adapter {
	return &Adapter{app: app}
}

func (a *Adapter) RegisterRoutes(b *bastion.Bastion) error {
	a.b = b

	api := a.app.Group(b.BasePath)

	// The gate runs before everything, including auth resolution.
	if b.Gate != nil {
		api.Use(a.gateMiddleware)
	}

	// Public routes
	api.Post("/sign-up", a.signUp)
	api.Post("/sign-in", a.signIn)
	api.Post("/oauth/:provider/callback", a.oauthCallback)

	// Protected routes
	api.Post("/sign-out", a.requireAuth, a.signOut)
	api.Get("/session", a.requireAuth, a.session)
	api.Get("/sessions", a.requireAuth, a.listSessions)
	api.Delete("/sessions/:id", a.requireAuth, a.revokeSession)
	api.Post("/oauth/:provider/link", a.requireAuth, a.oauthLink)
	api.Get("/2fa", a.requireAuth, a.twoFactorStatus)
	api.Post("/2fa", a.requireAuth, a.twoFactorBegin)
	api.Put("/2fa", a.requireAuth, a.twoFactorConfirm)
	api.Delete("/2fa", a.requireAuth, a.twoFactorDisable)

	return nil
}

// BuildProtectedMiddleware returns a fiber.Handler that validates the
// session token and stores user/session data in the context for
// downstream handlers.
func (a *Adapter) BuildProtectedMiddleware(b *bastion.Bastion) interface{} {
	return fiber.Handler(func(c fiber.Ctx) error {
		token := extractToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": bastion.ErrMissingAuthHeader.Error(),
			})
		}

		sessionData, err := b.Sessions.Resolve(token)
		if err != nil {
			return handleAuthError(c, err)
		}

		c.Locals("user", sessionData.User)
		c.Locals("session", sessionData.Session)
		c.Locals("token", token)

		return c.Next()
	})
}
