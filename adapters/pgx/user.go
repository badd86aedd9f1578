package pgx

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bastion-dev/bastion/core"
)

func (a *Adapter) CreateUser(user *core.User) error {
	ctx := context.Background()

	if user.Role == "" {
		user.Role = core.RoleUser
	}

	query := `INSERT INTO public.users (email, email_verified, name, image, role) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`
	var id string
	var createdAt, updatedAt time.Time

	err := a.pool.QueryRow(ctx, query, user.Email, user.EmailVerified, user.Name, user.Image, user.Role).Scan(&id, &createdAt, &updatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrUserExists
		}
		return err
	}

	user.ID = id
	user.CreatedAt = createdAt
	user.UpdatedAt = updatedAt
	return nil
}

func (a *Adapter) GetUserByID(id string) (*core.User, error) {
	ctx := context.Background()
	q := `SELECT id, email, email_verified, name, image, role, created_at, updated_at FROM public.users WHERE id = $1`

	user := &core.User{}
	var image *string
	err := a.pool.QueryRow(ctx, q, id).Scan(&user.ID, &user.Email, &user.EmailVerified, &user.Name, &image, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, core.ErrUserNotFound
		}
		return nil, err
	}
	user.Image = image
	return user, nil
}

func (a *Adapter) GetUserByEmail(email string) (*core.User, error) {
	ctx := context.Background()
	q := `SELECT id, email, email_verified, name, image, role, created_at, updated_at FROM public.users WHERE email = $1`

	user := &core.User{}
	var image *string
	err := a.pool.QueryRow(ctx, q, email).Scan(&user.ID, &user.Email, &user.EmailVerified, &user.Name, &image, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, core.ErrUserNotFound
		}
		return nil, err
	}
	user.Image = image
	return user, nil
}

func (a *Adapter) UpdateUser(user *core.User) error {
	ctx := context.Background()
	q := `UPDATE public.users SET email = $1, email_verified = $2, name = $3, image = $4, role = $5, updated_at = now() WHERE id = $6 RETURNING updated_at`
	var updatedAt time.Time
	err := a.pool.QueryRow(ctx, q, user.Email, user.EmailVerified, user.Name, user.Image, user.Role, user.ID).Scan(&updatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return core.ErrUserNotFound
		}
		return err
	}
	user.UpdatedAt = updatedAt
	return nil
}
