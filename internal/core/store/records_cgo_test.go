//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/writify/writify/internal/config"
	"github.com/writify/writify/internal/core"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCoverLetterHistory(t *testing.T) {
	ctx := context.Background()
	store := openMemory(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		id, err := store.SaveCoverLetter(ctx, core.CoverLetter{
			Company:    "Acme",
			Position:   "Engineer",
			Content:    "Dear Hiring Manager",
			TemplateID: "modern",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		require.Equal(t, int64(i+1), id)
	}

	letters, err := store.ListCoverLetters(ctx, 0)
	require.NoError(t, err)
	require.Len(t, letters, core.DefaultHistoryLimit)
	require.Equal(t, int64(12), letters[0].ID)
	require.Equal(t, base.Add(11*time.Minute), letters[0].CreatedAt)
	require.Equal(t, int64(3), letters[9].ID)

	letters, err = store.ListCoverLetters(ctx, 2)
	require.NoError(t, err)
	require.Len(t, letters, 2)

	_, err = store.SaveCoverLetter(ctx, core.CoverLetter{Company: "Acme", Content: "x"})
	require.Error(t, err)
}

func TestCustomTemplates(t *testing.T) {
	ctx := context.Background()
	store := openMemory(t)

	templates, err := store.ListTemplates(ctx)
	require.NoError(t, err)
	require.Empty(t, templates)

	first, err := store.SaveTemplate(ctx, core.CustomTemplate{Name: "Short", Structure: "Dear {hiring_manager}", CreatedAt: time.Unix(100, 0)})
	require.NoError(t, err)
	second, err := store.SaveTemplate(ctx, core.CustomTemplate{Name: "Long", Description: "Formal", Structure: "To {company}", CreatedAt: time.Unix(200, 0)})
	require.NoError(t, err)

	templates, err = store.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 2)
	require.Equal(t, second, templates[0].ID)
	require.Equal(t, "Formal", templates[0].Description)
	require.Equal(t, first, templates[1].ID)
	require.Empty(t, templates[1].Description)

	_, err = store.SaveTemplate(ctx, core.CustomTemplate{Name: "Empty"})
	require.Error(t, err)
}

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	store := openMemory(t)

	prefs, err := store.GetPreferences(ctx)
	require.NoError(t, err)
	require.Nil(t, prefs)

	require.NoError(t, store.UpsertPreferences(ctx, core.Preferences{Name: "Jane", Email: "jane@example.com", DefaultTemplate: "modern", PreferredCreativity: 5}))
	require.NoError(t, store.UpsertPreferences(ctx, core.Preferences{Name: "Jane Doe", DefaultTemplate: "technical", PreferredCreativity: 8}))

	prefs, err = store.GetPreferences(ctx)
	require.NoError(t, err)
	require.NotNil(t, prefs)
	require.Equal(t, "Jane Doe", prefs.Name)
	require.Empty(t, prefs.Email)
	require.Equal(t, "technical", prefs.DefaultTemplate)
	require.Equal(t, 8, prefs.PreferredCreativity)

	require.Error(t, store.UpsertPreferences(ctx, core.Preferences{PreferredCreativity: 11}))
}
