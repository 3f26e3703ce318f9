package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"sekolahku.id/internal/auth"
	"sekolahku.id/internal/ids"
)

// Users implements auth.UserStore over PostgreSQL.
type Users struct {
	db *sql.DB
}

var _ auth.UserStore = (*Users)(nil)

const userColumns = `id, name, email, role, status, password_hash, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*auth.User, error) {
	var (
		u    auth.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &role, &u.Status, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = auth.Role(role)
	return &u, nil
}

func (s *Users) Find(ctx context.Context, id string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where id = $1
	`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Users) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where email = $1
	`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Users) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+userColumns+`
		from users
		order by email
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Users) Create(ctx context.Context, u *auth.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, name, email, role, status, password_hash)
		values ($1, $2, $3, $4, $5, $6)
		returning created_at, updated_at
	`, u.ID, u.Name, u.Email, string(u.Role), u.Status, u.PasswordHash)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: email %s", auth.ErrConflict, u.Email)
		}
		return err
	}
	return nil
}

func (s *Users) UpdateRole(ctx context.Context, id string, role auth.Role) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `
		update users
		set role = $2, updated_at = now()
		where id = $1
		returning `+userColumns+`
	`, id, string(role))
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Users) UpdateStatus(ctx context.Context, id string, status string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `
		update users
		set status = $2, updated_at = now()
		where id = $1
		returning `+userColumns+`
	`, id, status)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}
