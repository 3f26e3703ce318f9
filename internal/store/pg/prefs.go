package pg

import (
	"context"
	"database/sql"
	"errors"

	"sekolahku.id/internal/prefs"
)

// Prefs implements prefs.Store over PostgreSQL.
type Prefs struct {
	db *sql.DB
}

var _ prefs.Store = (*Prefs)(nil)

func (s *Prefs) Save(ctx context.Context, pref *prefs.Preference) error {
	_, err := s.db.ExecContext(ctx, `
		insert into theme_prefs (user_id, theme, updated_at)
		values ($1, $2, $3)
		on conflict (user_id) do update
		set theme = excluded.theme, updated_at = excluded.updated_at
	`, pref.UserID, string(pref.Theme), pref.UpdatedAt)
	return err
}

func (s *Prefs) Load(ctx context.Context, userID string) (*prefs.Preference, error) {
	var (
		pref  prefs.Preference
		theme string
	)
	err := s.db.QueryRowContext(ctx, `
		select user_id, theme, updated_at
		from theme_prefs
		where user_id = $1
	`, userID).Scan(&pref.UserID, &theme, &pref.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	pref.Theme = prefs.Theme(theme)
	if !pref.Theme.Valid() {
		// Unreadable record: treat as absent.
		return nil, nil
	}
	return &pref, nil
}

func (s *Prefs) Clear(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `delete from theme_prefs where user_id = $1`, userID)
	return err
}
