package fiber

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/bastion-dev/bastion"
	"github.com/bastion-dev/bastion/gate"
)

// requireAuth validates the session token and stores user/session data
// in the context for downstream handlers.
func (a *Adapter) requireAuth(c fiber.Ctx) error {
	token := extractToken(c)
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": bastion.ErrMissingAuthHeader.Error(),
		})
	}

	sessionData, err := a.b.Sessions.Resolve(token)
	if err != nil {
		return handleAuthError(c, err)
	}

	c.Locals("user", sessionData.User)
	c.Locals("session", sessionData.Session)
	c.Locals("token", token)

	return c.Next()
}

// gateMiddleware applies the request gate in its fixed order: security
// headers, rate limit, user-agent check, origin check.
func (a *Adapter) gateMiddleware(c fiber.Ctx) error {
	g := a.b.Gate

	for header, value := range gate.SecurityHeaders {
		c.Set(header, value)
	}

	decision, err := g.CheckRate(c.Context(), c.IP())
	if err != nil {
		// A broken bucket store must not take authentication down
		// with it; the request proceeds unlimited.
		decision = nil
	}
	if decision != nil {
		c.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(decision.Reset.Unix(), 10))
		if !decision.Allowed {
			c.Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": bastion.ErrRateLimitExceeded.Error(),
			})
		}
	}

	if err := g.CheckUserAgent(c.Get(fiber.HeaderUserAgent)); err != nil {
		return handleAuthError(c, err)
	}

	if err := g.CheckOrigin(c.Get(fiber.HeaderOrigin)); err != nil {
		return handleAuthError(c, err)
	}

	return c.Next()
}
