package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/writify/writify/internal/core"
)

// UpsertPreferences replaces the saved preferences.
func (s *Store) UpsertPreferences(ctx context.Context, prefs core.Preferences) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if prefs.PreferredCreativity < 0 || prefs.PreferredCreativity > 10 {
		return fmt.Errorf("preferred creativity %d out of range 0-10", prefs.PreferredCreativity)
	}

	updatedAt := prefs.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO user_preferences (id, name, email, default_template, preferred_creativity, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			default_template = excluded.default_template,
			preferred_creativity = excluded.preferred_creativity,
			updated_at = excluded.updated_at
	`, strings.TrimSpace(prefs.Name), strings.TrimSpace(prefs.Email), strings.TrimSpace(prefs.DefaultTemplate),
		prefs.PreferredCreativity, updatedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("store preferences: %w", err)
	}
	return nil
}

// GetPreferences returns the saved preferences, or nil when none are saved.
func (s *Store) GetPreferences(ctx context.Context) (*core.Preferences, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var (
		name, email, defaultTemplate sql.NullString
		creativity                   sql.NullInt64
		updatedAt                    int64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT name, email, default_template, preferred_creativity, updated_at
		FROM user_preferences
		WHERE id = 1
	`)
	if err := row.Scan(&name, &email, &defaultTemplate, &creativity, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch preferences: %w", err)
	}

	return &core.Preferences{
		Name:                name.String,
		Email:               email.String,
		DefaultTemplate:     defaultTemplate.String,
		PreferredCreativity: int(creativity.Int64),
		UpdatedAt:           time.UnixMilli(updatedAt).UTC(),
	}, nil
}
