package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/writify/writify/internal/core"
)

// SaveCoverLetter stores a generated letter and returns its id.
func (s *Store) SaveCoverLetter(ctx context.Context, letter core.CoverLetter) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	company := strings.TrimSpace(letter.Company)
	position := strings.TrimSpace(letter.Position)
	if company == "" || position == "" {
		return 0, errors.New("company and position are required")
	}
	if strings.TrimSpace(letter.Content) == "" {
		return 0, errors.New("cover letter content is required")
	}

	createdAt := letter.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := s.DB.ExecContext(ctx, `
		INSERT INTO cover_letters (company, position, content, template_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, company, position, letter.Content, strings.TrimSpace(letter.TemplateID), createdAt.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("store cover letter: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store cover letter: %w", err)
	}
	return id, nil
}

// ListCoverLetters returns up to limit letters, newest first. A non-positive
// limit means core.DefaultHistoryLimit.
func (s *Store) ListCoverLetters(ctx context.Context, limit int) ([]core.CoverLetter, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = core.DefaultHistoryLimit
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, company, position, content, template_id, created_at
		FROM cover_letters
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list cover letters: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	letters := []core.CoverLetter{}
	for rows.Next() {
		var (
			letter    core.CoverLetter
			createdAt int64
		)
		if err := rows.Scan(&letter.ID, &letter.Company, &letter.Position, &letter.Content, &letter.TemplateID, &createdAt); err != nil {
			return nil, fmt.Errorf("list cover letters: %w", err)
		}
		letter.CreatedAt = time.UnixMilli(createdAt).UTC()
		letters = append(letters, letter)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cover letters: %w", err)
	}

	return letters, nil
}
