package pgx

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bastion-dev/bastion/core"
)

func (a *Adapter) CreateAccount(acc *core.Account) error {
	ctx := context.Background()

	query := `INSERT INTO public.accounts (id, user_id, provider_id, account_id, type, password, access_token, refresh_token, expires_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          RETURNING created_at, updated_at`

	var createdAt, updatedAt time.Time
	err := a.pool.QueryRow(ctx, query,
		acc.ID, acc.UserID, acc.ProviderID, acc.AccountID, acc.Type, acc.Password, acc.AccessToken, acc.RefreshToken, acc.ExpiresAt,
	).Scan(&createdAt, &updatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrAccountAlreadyLinked
		}
		return err
	}

	acc.CreatedAt = createdAt
	acc.UpdatedAt = updatedAt
	return nil
}

func (a *Adapter) GetAccountByProvider(providerID, accountID string) (*core.Account, error) {
	ctx := context.Background()
	query := `SELECT id, user_id, provider_id, account_id, type, password, access_token, refresh_token, expires_at, created_at, updated_at
	          FROM public.accounts WHERE provider_id = $1 AND account_id = $2`

	acc := &core.Account{}
	err := a.pool.QueryRow(ctx, query, providerID, accountID).Scan(
		&acc.ID, &acc.UserID, &acc.ProviderID, &acc.AccountID, &acc.Type, &acc.Password, &acc.AccessToken, &acc.RefreshToken, &acc.ExpiresAt, &acc.CreatedAt, &acc.UpdatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, core.ErrAccountNotFound
		}
		return nil, err
	}

	return acc, nil
}

func (a *Adapter) GetAccountsByUser(userID string) ([]*core.Account, error) {
	ctx := context.Background()
	query := `SELECT id, user_id, provider_id, account_id, type, password, access_token, refresh_token, expires_at, created_at, updated_at
	          FROM public.accounts WHERE user_id = $1`

	return a.scanAccounts(ctx, query, userID)
}

func (a *Adapter) GetAccountByUserAndProvider(userID, providerID string) ([]*core.Account, error) {
	ctx := context.Background()
	query := `SELECT id, user_id, provider_id, account_id, type, password, access_token, refresh_token, expires_at, created_at, updated_at
	          FROM public.accounts WHERE user_id = $1 AND provider_id = $2`

	return a.scanAccounts(ctx, query, userID, providerID)
}

func (a *Adapter) scanAccounts(ctx context.Context, query string, args ...any) ([]*core.Account, error) {
	rows, err := a.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*core.Account
	for rows.Next() {
		acc := &core.Account{}
		err := rows.Scan(
			&acc.ID, &acc.UserID, &acc.ProviderID, &acc.AccountID, &acc.Type, &acc.Password, &acc.AccessToken, &acc.RefreshToken, &acc.ExpiresAt, &acc.CreatedAt, &acc.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return accounts, nil
}

func (a *Adapter) UpdateAccount(acc *core.Account) error {
	ctx := context.Background()
	query := `UPDATE public.accounts SET account_id = $1, password = $2, access_token = $3, refresh_token = $4, expires_at = $5, updated_at = now()
	          WHERE id = $6 RETURNING updated_at`

	var updatedAt time.Time
	err := a.pool.QueryRow(ctx, query,
		acc.AccountID, acc.Password, acc.AccessToken, acc.RefreshToken, acc.ExpiresAt, acc.ID,
	).Scan(&updatedAt)

	if err != nil {
		if err == pgx.ErrNoRows {
			return core.ErrAccountNotFound
		}
		return err
	}

	acc.UpdatedAt = updatedAt
	return nil
}

func (a *Adapter) DeleteAccount(id string) error {
	ctx := context.Background()
	_, err := a.pool.Exec(ctx, `DELETE FROM public.accounts WHERE id = $1`, id)
	return err
}
