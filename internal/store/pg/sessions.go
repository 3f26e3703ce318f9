package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sekolahku.id/internal/auth"
)

// Sessions implements auth.SessionStore over PostgreSQL.
type Sessions struct {
	db *sql.DB
}

var _ auth.SessionStore = (*Sessions)(nil)

func (s *Sessions) Save(ctx context.Context, sess *auth.Session) error {
	_, err := s.db.ExecContext(ctx, `
		insert into sessions (token, user_id, role, fingerprint, issued_at, expires_at)
		values ($1, $2, $3, $4, $5, $6)
		on conflict (token) do update
		set user_id = excluded.user_id,
		    role = excluded.role,
		    fingerprint = excluded.fingerprint,
		    issued_at = excluded.issued_at,
		    expires_at = excluded.expires_at
	`, sess.Token, sess.UserID, string(sess.Role), sess.Fingerprint, sess.IssuedAt, sess.ExpiresAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return fmt.Errorf("%w: user %s", auth.ErrNotFound, sess.UserID)
		}
		return err
	}
	return nil
}

func (s *Sessions) Find(ctx context.Context, token string) (*auth.Session, error) {
	var (
		sess auth.Session
		role string
	)
	err := s.db.QueryRowContext(ctx, `
		select token, user_id, role, fingerprint, issued_at, expires_at
		from sessions
		where token = $1
	`, token).Scan(&sess.Token, &sess.UserID, &role, &sess.Fingerprint, &sess.IssuedAt, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess.Role = auth.Role(role)
	return &sess, nil
}

func (s *Sessions) Delete(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `delete from sessions where token = $1`, token)
	return err
}

func (s *Sessions) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `delete from sessions where user_id = $1`, userID)
	return err
}

// DeleteExpired prunes lapsed rows. Run periodically from the API binary.
func (s *Sessions) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from sessions where expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
