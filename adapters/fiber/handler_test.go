package fiber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/bastion-dev/bastion"
	"github.com/bastion-dev/bastion/gate"
	"github.com/bastion-dev/bastion/services"
)

const (
	testSecret   = "secretshouldbeatleast32charslong"
	browserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
)

func newTestApp(t *testing.T, gateConfig *gate.Config) (*fiber.App, *bastion.Bastion) {
	t.Helper()

	app := fiber.New()
	config := bastion.Config{
		Secret:   testSecret,
		Database: services.NewFakeStorage(),
		HTTP:     New(app),
	}
	if gateConfig != nil {
		config.GateConfig = gateConfig
	} else {
		config.DisableGate = true
	}

	b, err := bastion.New(config)
	if err != nil {
		t.Fatalf("bastion.New() error = %v", err)
	}
	return app, b
}

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", browserAgent)
	return req
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func signUp(t *testing.T, app *fiber.App, email string) string {
	t.Helper()
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/auth/sign-up", map[string]string{
		"email":    email,
		"password": "SecurePass123!",
	}))
	if err != nil {
		t.Fatalf("sign-up request: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("sign-up status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var body struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &body)
	if body.Token == "" {
		t.Fatal("sign-up should return a token")
	}
	return body.Token
}

func TestSignUpAndSignInRoutes(t *testing.T) {
	app, _ := newTestApp(t, nil)
	signUp(t, app, "alice@example.com")

	// Duplicate registration conflicts.
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/auth/sign-up", map[string]string{
		"email":    "alice@example.com",
		"password": "SecurePass123!",
	}))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate sign-up status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	tests := []struct {
		name       string
		email      string
		password   string
		wantStatus int
	}{
		{"valid credentials", "alice@example.com", "SecurePass123!", http.StatusOK},
		{"wrong password", "alice@example.com", "WrongPass123!", http.StatusUnauthorized},
		{"unknown user", "nobody@example.com", "SecurePass123!", http.StatusUnauthorized},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			resp, err := app.Test(jsonRequest(http.MethodPost, "/api/auth/sign-in", map[string]string{
				"email":    test.email,
				"password": test.password,
			}))
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			if resp.StatusCode != test.wantStatus {
				t.Errorf("sign-in status = %d, want %d", resp.StatusCode, test.wantStatus)
			}
		})
	}
}

func TestSessionRoutes(t *testing.T) {
	app, _ := newTestApp(t, nil)
	token := signUp(t, app, "alice@example.com")

	// No credentials.
	req := jsonRequest(http.MethodGet, "/api/auth/session", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated session status = %d, want 401", resp.StatusCode)
	}

	// Bearer token.
	req = jsonRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("session status = %d, want 200", resp.StatusCode)
	}
	var data struct {
		User *bastion.User `json:"user"`
	}
	decodeBody(t, resp, &data)
	if data.User == nil || data.User.Email != "alice@example.com" {
		t.Errorf("session user = %+v", data.User)
	}

	// Cookie fallback.
	req = jsonRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("cookie session status = %d, want 200", resp.StatusCode)
	}

	// Sign out, then the token is dead.
	req = jsonRequest(http.MethodPost, "/api/auth/sign-out", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sign-out status = %d, want 200", resp.StatusCode)
	}

	req = jsonRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("session after sign-out status = %d, want 401", resp.StatusCode)
	}
}

func TestSessionListAndRevoke(t *testing.T) {
	app, _ := newTestApp(t, nil)
	token := signUp(t, app, "alice@example.com")

	// A second session for the same user through sign-in.
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/auth/sign-in", map[string]string{
		"email":    "alice@example.com",
		"password": "SecurePass123!",
	}))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sign-in status = %d", resp.StatusCode)
	}

	req := jsonRequest(http.MethodGet, "/api/auth/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sessions status = %d, want 200", resp.StatusCode)
	}

	var list struct {
		Sessions []*bastion.SessionSummary `json:"sessions"`
	}
	decodeBody(t, resp, &list)
	if len(list.Sessions) != 2 {
		t.Fatalf("sessions count = %d, want 2", len(list.Sessions))
	}

	var currentID, otherID string
	for _, s := range list.Sessions {
		if s.IsCurrent {
			currentID = s.ID
		} else {
			otherID = s.ID
		}
	}
	if currentID == "" || otherID == "" {
		t.Fatalf("expected one current and one other session, got %+v", list.Sessions)
	}

	// Revoking the current session is refused.
	req = jsonRequest(http.MethodDelete, "/api/auth/sessions/"+currentID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("revoke current status = %d, want 400", resp.StatusCode)
	}

	// Revoking the other one works.
	req = jsonRequest(http.MethodDelete, "/api/auth/sessions/"+otherID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("revoke other status = %d, want 200", resp.StatusCode)
	}
}

func TestTwoFactorRoutes(t *testing.T) {
	app, b := newTestApp(t, nil)
	token := signUp(t, app, "alice@example.com")

	authed := func(method, target string, body any) *http.Request {
		req := jsonRequest(method, target, body)
		req.Header.Set("Authorization", "Bearer "+token)
		return req
	}

	resp, err := app.Test(authed(http.MethodGet, "/api/auth/2fa", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var status struct {
		State string `json:"state"`
	}
	decodeBody(t, resp, &status)
	if status.State != "absent" {
		t.Errorf("initial 2fa state = %q, want absent", status.State)
	}

	resp, err = app.Test(authed(http.MethodPost, "/api/auth/2fa", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("enroll status = %d, want 200", resp.StatusCode)
	}
	var enrollment struct {
		Secret          string `json:"secret"`
		ProvisioningURI string `json:"provisioningUri"`
	}
	decodeBody(t, resp, &enrollment)
	if enrollment.Secret == "" || enrollment.ProvisioningURI == "" {
		t.Fatal("enrollment should return a secret and URI")
	}

	// Wrong code.
	resp, err = app.Test(authed(http.MethodPut, "/api/auth/2fa", map[string]string{"code": "000000"}))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("confirm wrong code status = %d, want 401", resp.StatusCode)
	}

	// Disable before enabling is a client error.
	resp, err = app.Test(authed(http.MethodDelete, "/api/auth/2fa", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("premature disable status = %d, want 400", resp.StatusCode)
	}

	// Confirm with the real code straight from the controller's TOTP.
	data, err := b.Sessions.Resolve(token)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	code := currentTOTPCode(t, enrollment.Secret)
	resp, err = app.Test(authed(http.MethodPut, "/api/auth/2fa", map[string]string{"code": code}))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm status = %d, want 200", resp.StatusCode)
	}

	state, err := b.TwoFactor.Status(data.User.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if state != "enabled" {
		t.Errorf("2fa state = %q, want enabled", state)
	}
}

func currentTOTPCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := bastion.DefaultTOTP("bastion").CodeAt(secret, time.Now())
	if err != nil {
		t.Fatalf("CodeAt() error = %v", err)
	}
	return code
}

func TestGateRateLimiting(t *testing.T) {
	app, _ := newTestApp(t, &gate.Config{MaxRequests: 3, Window: time.Minute})

	var lastRemaining string
	for i := 0; i < 3; i++ {
		resp, err := app.Test(jsonRequest(http.MethodGet, "/api/auth/session", nil))
		if err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			t.Fatalf("request %d rate limited too early", i+1)
		}
		lastRemaining = resp.Header.Get("X-RateLimit-Remaining")
		if resp.Header.Get("X-RateLimit-Reset") == "" {
			t.Error("X-RateLimit-Reset header missing")
		}
	}
	if lastRemaining != "0" {
		t.Errorf("remaining after exhausting allowance = %q, want 0", lastRemaining)
	}

	resp, err := app.Test(jsonRequest(http.MethodGet, "/api/auth/session", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("over-limit status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("429 response should carry Retry-After")
	}
}

// failingBucketStore stands in for an unreachable shared store.
type failingBucketStore struct{}

func (failingBucketStore) Incr(context.Context, string, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, errors.New("store unavailable")
}

// Requirement: a broken bucket store fails open. Requests proceed
// unlimited, without rate-limit headers, and the remaining gate checks
// still apply.
func TestGateFailsOpenOnBrokenStore(t *testing.T) {
	app := fiber.New()
	config := bastion.Config{
		Secret:         testSecret,
		Database:       services.NewFakeStorage(),
		HTTP:           New(app),
		GateConfig:     &gate.Config{MaxRequests: 1, Window: time.Minute},
		RateLimitStore: failingBucketStore{},
	}
	if _, err := bastion.New(config); err != nil {
		t.Fatalf("bastion.New() error = %v", err)
	}

	// Well past the configured allowance of one request.
	for i := 0; i < 3; i++ {
		resp, err := app.Test(jsonRequest(http.MethodGet, "/api/auth/session", nil))
		if err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			t.Fatalf("request %d rate limited despite a broken store", i+1)
		}
		if got := resp.Header.Get("X-RateLimit-Remaining"); got != "" {
			t.Errorf("X-RateLimit-Remaining = %q, want unset", got)
		}
		if got := resp.Header.Get("X-RateLimit-Reset"); got != "" {
			t.Errorf("X-RateLimit-Reset = %q, want unset", got)
		}
	}

	// Policy checks downstream of the limiter still run.
	req := jsonRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("User-Agent", "curl/8.5.0")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("blocked agent status = %d, want 403", resp.StatusCode)
	}
}

func TestGateSecurityHeadersAndPolicy(t *testing.T) {
	app, _ := newTestApp(t, &gate.Config{
		MaxRequests: 100,
		Window:      time.Minute,
		Origin:      "https://app.example.com",
	})

	resp, err := app.Test(jsonRequest(http.MethodGet, "/api/auth/session", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	for header, want := range gate.SecurityHeaders {
		if got := resp.Header.Get(header); got != want {
			t.Errorf("header %s = %q, want %q", header, got, want)
		}
	}

	// Non-browser client.
	req := jsonRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("User-Agent", "curl/8.5.0")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("blocked agent status = %d, want 403", resp.StatusCode)
	}

	// Cross-origin request.
	req = jsonRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("cross-origin status = %d, want 403", resp.StatusCode)
	}

	// Matching origin passes the gate (401 from auth, not 403).
	req = jsonRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("Origin", "https://app.example.com")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("same-origin status = %d, want 401", resp.StatusCode)
	}
}

func TestOAuthRoutes(t *testing.T) {
	app, _ := newTestApp(t, nil)

	// Unknown provider tag.
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/auth/oauth/myspace/callback", map[string]string{
		"token": "provider-token",
	}))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown provider status = %d, want 404", resp.StatusCode)
	}

	// Missing assertion body.
	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/auth/oauth/google/callback", map[string]string{}))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing token status = %d, want 400", resp.StatusCode)
	}

	// Linking requires authentication.
	resp, err = app.Test(jsonRequest(http.MethodPost, "/api/auth/oauth/google/link", map[string]string{
		"token": "provider-token",
	}))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated link status = %d, want 401", resp.StatusCode)
	}
}

func TestProtectedMiddlewareGuardsAppRoutes(t *testing.T) {
	app, b := newTestApp(t, nil)
	token := signUp(t, app, "alice@example.com")

	app.Get("/sensitive", b.Protected.(fiber.Handler), func(c fiber.Ctx) error {
		user := c.Locals("user").(*bastion.User)
		return c.JSON(fiber.Map{"email": user.Email})
	})

	resp, err := app.Test(jsonRequest(http.MethodGet, "/sensitive", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", resp.StatusCode)
	}

	req := jsonRequest(http.MethodGet, "/sensitive", nil)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", resp.StatusCode)
	}
}
