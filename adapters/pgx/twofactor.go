package pgx

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/bastion-dev/bastion/core"
)

func (a *Adapter) GetTwoFactor(userID string) (*core.TwoFactorCredential, error) {
	ctx := context.Background()
	query := `SELECT user_id, secret, pending_secret, enabled, created_at, updated_at
	          FROM public.two_factor_credentials WHERE user_id = $1`

	c := &core.TwoFactorCredential{}
	err := a.pool.QueryRow(ctx, query, userID).Scan(&c.UserID, &c.Secret, &c.PendingSecret, &c.Enabled, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, core.ErrTwoFactorNotEnrolled
		}
		return nil, err
	}
	return c, nil
}

// PutTwoFactor upserts the user's single credential row. The promote-
// on-confirm write (pending becomes enabled) rides the same statement,
// so the replace is atomic.
func (a *Adapter) PutTwoFactor(c *core.TwoFactorCredential) error {
	ctx := context.Background()
	query := `INSERT INTO public.two_factor_credentials (user_id, secret, pending_secret, enabled, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (user_id) DO UPDATE
	          SET secret = EXCLUDED.secret, pending_secret = EXCLUDED.pending_secret, enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at`

	_, err := a.pool.Exec(ctx, query, c.UserID, c.Secret, c.PendingSecret, c.Enabled, c.CreatedAt, c.UpdatedAt)
	return err
}

func (a *Adapter) DeleteTwoFactor(userID string) error {
	ctx := context.Background()
	_, err := a.pool.Exec(ctx, `DELETE FROM public.two_factor_credentials WHERE user_id = $1`, userID)
	return err
}
