package fiber

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/bastion-dev/bastion"
)

func (a *Adapter) signUp(c fiber.Ctx) error {
	var input bastion.SignUpInput
	if err := c.Bind().Body(&input); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	result, err := a.b.Auth.SignUp(input, c.IP(), c.Get(fiber.HeaderUserAgent))
	if err != nil {
		return handleAuthError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(result)
}

func (a *Adapter) signIn(c fiber.Ctx) error {
	var input bastion.SignInInput
	if err := c.Bind().Body(&input); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	result, err := a.b.Auth.SignIn(input, c.IP(), c.Get(fiber.HeaderUserAgent))
	if err != nil {
		return handleAuthError(c, err)
	}

	return c.Status(http.StatusOK).JSON(result)
}

func (a *Adapter) signOut(c fiber.Ctx) error {
	token := c.Locals("token").(string)

	if err := a.b.Auth.SignOut(token); err != nil {
		return handleAuthError(c, err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "signed out successfully",
	})
}

func (a *Adapter) session(c fiber.Ctx) error {
	user := c.Locals("user").(*bastion.User)
	session := c.Locals("session").(*bastion.Session)

	return c.Status(http.StatusOK).JSON(bastion.SessionData{
		User:    user,
		Session: session,
	})
}

func (a *Adapter) listSessions(c fiber.Ctx) error {
	user := c.Locals("user").(*bastion.User)
	session := c.Locals("session").(*bastion.Session)

	summaries, err := a.b.Sessions.Summaries(user.ID, session.ID)
	if err != nil {
		return handleAuthError(c, err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{"sessions": summaries})
}

func (a *Adapter) revokeSession(c fiber.Ctx) error {
	user := c.Locals("user").(*bastion.User)
	session := c.Locals("session").(*bastion.Session)

	if err := a.b.Sessions.Revoke(c.Params("id"), user.ID, session.ID); err != nil {
		return handleAuthError(c, err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "session revoked",
	})
}

type oauthCallbackBody struct {
	Token string `json:"token"`
}

func (a *Adapter) oauthCallback(c fiber.Ctx) error {
	var body oauthCallbackBody
	if err := c.Bind().Body(&body); err != nil || body.Token == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	// A valid session may ride along; then the assertion is checked
	// against that user instead of starting a sign-in.
	var current *bastion.User
	if token := extractToken(c); token != "" {
		if data, err := a.b.Sessions.Resolve(token); err == nil {
			current = data.User
		}
	}

	result, err := a.b.Linker.Link(c.Context(), c.Params("provider"), body.Token, current, c.IP(), c.Get(fiber.HeaderUserAgent))
	if err != nil {
		return handleAuthError(c, err)
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(result)
}

func (a *Adapter) oauthLink(c fiber.Ctx) error {
	var body oauthCallbackBody
	if err := c.Bind().Body(&body); err != nil || body.Token == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	user := c.Locals("user").(*bastion.User)

	result, err := a.b.Linker.Link(c.Context(), c.Params("provider"), body.Token, user, c.IP(), c.Get(fiber.HeaderUserAgent))
	if err != nil {
		return handleAuthError(c, err)
	}

	return c.Status(http.StatusOK).JSON(result)
}

func (a *Adapter) twoFactorStatus(c fiber.Ctx) error {
	user := c.Locals("user").(*bastion.User)

	state, err := a.b.TwoFactor.Status(user.ID)
	if err != nil {
		return handleAuthError(c, err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{"state": state})
}

func (a *Adapter) twoFactorBegin(c fiber.Ctx) error {
	user := c.Locals("user").(*bastion.User)

	result, err := a.b.TwoFactor.BeginEnrollment(user.ID, user.Email)
	if err != nil {
		return handleAuthError(c, err)
	}

	return c.Status(http.StatusOK).JSON(result)
}

type twoFactorCodeBody struct {
	Code string `json:"code"`
}

func (a *Adapter) twoFactorConfirm(c fiber.Ctx) error {
	var body twoFactorCodeBody
	if err := c.Bind().Body(&body); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	user := c.Locals("user").(*bastion.User)

	if err := a.b.TwoFactor.Confirm(user.ID, body.Code); err != nil {
		return handleAuthError(c, err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "second factor enabled",
	})
}

func (a *Adapter) twoFactorDisable(c fiber.Ctx) error {
	user := c.Locals("user").(*bastion.User)

	if err := a.b.TwoFactor.Disable(user.ID); err != nil {
		return handleAuthError(c, err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "second factor disabled",
	})
}

// extractToken extracts the authentication token from the request.
// Checks Authorization header (Bearer token) first, then falls back to cookie.
func extractToken(c fiber.Ctx) string {
	// Try Bearer token first
	authHeader := c.Get(fiber.HeaderAuthorization)
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}

	// Fall back to cookie
	return c.Cookies("auth_token")
}

// handleAuthError maps authentication errors to appropriate HTTP responses
func handleAuthError(c fiber.Ctx, err error) error {
	status := mapErrorToStatus(err)
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// mapErrorToStatus maps bastion error types to HTTP status codes
func mapErrorToStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case errors.Is(err, bastion.ErrInvalidCredentials),
		errors.Is(err, bastion.ErrInvalidToken),
		errors.Is(err, bastion.ErrMissingAuthHeader),
		errors.Is(err, bastion.ErrInvalidAuthHeader),
		errors.Is(err, bastion.ErrSessionNotFound),
		errors.Is(err, bastion.ErrSessionExpired),
		errors.Is(err, bastion.ErrInvalidProviderToken),
		errors.Is(err, bastion.ErrIncompleteProviderProfile),
		errors.Is(err, bastion.ErrTwoFactorRequired),
		errors.Is(err, bastion.ErrInvalidCode):
		return http.StatusUnauthorized

	case errors.Is(err, bastion.ErrEmailRequired),
		errors.Is(err, bastion.ErrPasswordRequired),
		errors.Is(err, bastion.ErrPasswordTooShort),
		errors.Is(err, bastion.ErrPasswordTooLong),
		errors.Is(err, bastion.ErrInvalidEmail),
		errors.Is(err, bastion.ErrCannotRevokeCurrentSession),
		errors.Is(err, bastion.ErrTwoFactorNotPending),
		errors.Is(err, bastion.ErrTwoFactorNotEnabled):
		return http.StatusBadRequest

	case errors.Is(err, bastion.ErrForbidden),
		errors.Is(err, bastion.ErrUserAgentBlocked),
		errors.Is(err, bastion.ErrOriginNotAllowed):
		return http.StatusForbidden

	case errors.Is(err, bastion.ErrUserNotFound),
		errors.Is(err, bastion.ErrUnknownProvider):
		return http.StatusNotFound

	case errors.Is(err, bastion.ErrUserExists),
		errors.Is(err, bastion.ErrAccountAlreadyLinked):
		return http.StatusConflict

	case errors.Is(err, bastion.ErrRateLimitExceeded):
		return http.StatusTooManyRequests

	default:
		return http.StatusInternalServerError
	}
}
