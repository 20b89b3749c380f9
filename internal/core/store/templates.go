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

// SaveTemplate stores a custom template and returns its id.
func (s *Store) SaveTemplate(ctx context.Context, tpl core.CustomTemplate) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	name := strings.TrimSpace(tpl.Name)
	if name == "" {
		return 0, errors.New("template name is required")
	}
	if strings.TrimSpace(tpl.Structure) == "" {
		return 0, errors.New("template structure is required")
	}

	createdAt := tpl.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := s.DB.ExecContext(ctx, `
		INSERT INTO custom_templates (name, description, structure, created_at)
		VALUES (?, ?, ?, ?)
	`, name, strings.TrimSpace(tpl.Description), tpl.Structure, createdAt.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("store template: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store template: %w", err)
	}
	return id, nil
}

// ListTemplates returns all custom templates, newest first.
func (s *Store) ListTemplates(ctx context.Context) ([]core.CustomTemplate, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, name, description, structure, created_at
		FROM custom_templates
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	templates := []core.CustomTemplate{}
	for rows.Next() {
		var (
			tpl         core.CustomTemplate
			description sql.NullString
			createdAt   int64
		)
		if err := rows.Scan(&tpl.ID, &tpl.Name, &description, &tpl.Structure, &createdAt); err != nil {
			return nil, fmt.Errorf("list templates: %w", err)
		}
		tpl.Description = description.String
		tpl.CreatedAt = time.UnixMilli(createdAt).UTC()
		templates = append(templates, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	return templates, nil
}
