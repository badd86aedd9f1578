package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/bastion-dev/bastion/core"
	"github.com/bastion-dev/bastion/pkg/crypto"
)

// TwoFactorController drives the second-factor lifecycle:
//
//	Absent -> Pending -> Enabled -> Absent
//
// A pending secret never displaces an enabled one until a correct code
// confirms it, so a user re-enrolling cannot lock themselves out by
// abandoning the flow halfway.
type TwoFactorController struct {
	storage core.TwoFactorStorage
	totp    *crypto.TOTP
	now     func() time.Time
}

// EnrollmentResult is handed back from BeginEnrollment so the client
// can render a QR code. The secret itself grants nothing until
// confirmed.
type EnrollmentResult struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioningUri"`
}

func NewTwoFactorController(storage core.TwoFactorStorage, totp *crypto.TOTP) *TwoFactorController {
	if totp == nil {
		totp = crypto.DefaultTOTP("bastion")
	}
	return &TwoFactorController{storage: storage, totp: totp, now: time.Now}
}

// Status reports where the user's second factor sits in its lifecycle.
func (c *TwoFactorController) Status(userID string) (core.TwoFactorState, error) {
	cred, err := c.get(userID)
	if err != nil {
		return "", err
	}
	return cred.State(), nil
}

// Enabled reports whether sign-in must demand a code for this user.
func (c *TwoFactorController) Enabled(userID string) (bool, error) {
	state, err := c.Status(userID)
	if err != nil {
		return false, err
	}
	return state == core.TwoFactorEnabled, nil
}

// BeginEnrollment generates a fresh pending secret. Allowed from Absent
// and from Enabled (rotation); the enabled secret, if any, stays valid.
func (c *TwoFactorController) BeginEnrollment(userID, accountName string) (*EnrollmentResult, error) {
	if userID == "" {
		return nil, core.ErrUserNotFound
	}

	secret, err := c.totp.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}

	cred, err := c.get(userID)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		now := c.now()
		cred = &core.TwoFactorCredential{UserID: userID, CreatedAt: now}
	}
	cred.PendingSecret = secret
	cred.UpdatedAt = c.now()

	if err := c.storage.PutTwoFactor(cred); err != nil {
		return nil, fmt.Errorf("failed to store pending credential: %w", err)
	}

	return &EnrollmentResult{
		Secret:          secret,
		ProvisioningURI: c.totp.ProvisionURI(secret, accountName),
	}, nil
}

// Confirm verifies a code against the pending secret and, on success,
// promotes it in a single row write, discarding any previous secret.
func (c *TwoFactorController) Confirm(userID, code string) error {
	cred, err := c.get(userID)
	if err != nil {
		return err
	}
	// Checked against the pending secret directly: during a rotation the
	// row reports Enabled, but a confirmation is still legal.
	if cred == nil || cred.PendingSecret == "" {
		return core.ErrTwoFactorNotPending
	}

	ok, err := c.totp.Verify(cred.PendingSecret, code, c.now())
	if err != nil {
		return fmt.Errorf("failed to verify code: %w", err)
	}
	if !ok {
		return core.ErrInvalidCode
	}

	cred.Secret = cred.PendingSecret
	cred.PendingSecret = ""
	cred.Enabled = true
	cred.UpdatedAt = c.now()

	if err := c.storage.PutTwoFactor(cred); err != nil {
		return fmt.Errorf("failed to enable credential: %w", err)
	}
	return nil
}

// Disable removes the credential. Only legal from Enabled; callers are
// expected to have re-confirmed the primary factor first, but that
// policy lives with the integrating application.
func (c *TwoFactorController) Disable(userID string) error {
	cred, err := c.get(userID)
	if err != nil {
		return err
	}
	if cred.State() != core.TwoFactorEnabled {
		return core.ErrTwoFactorNotEnabled
	}

	return c.storage.DeleteTwoFactor(userID)
}

// Require verifies a sign-in code against the enabled secret. Throttling
// repeated failures is the request gate's job, not this controller's.
func (c *TwoFactorController) Require(userID, code string) error {
	cred, err := c.get(userID)
	if err != nil {
		return err
	}
	if cred.State() != core.TwoFactorEnabled {
		return core.ErrTwoFactorNotEnabled
	}

	ok, err := c.totp.Verify(cred.Secret, code, c.now())
	if err != nil {
		return fmt.Errorf("failed to verify code: %w", err)
	}
	if !ok {
		return core.ErrInvalidCode
	}
	return nil
}

// get normalizes "never enrolled" to a nil credential without error
// for callers that treat Absent as a regular state.
func (c *TwoFactorController) get(userID string) (*core.TwoFactorCredential, error) {
	cred, err := c.storage.GetTwoFactor(userID)
	if err != nil {
		if errors.Is(err, core.ErrTwoFactorNotEnrolled) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return cred, nil
}
