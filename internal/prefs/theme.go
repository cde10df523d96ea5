// Package prefs stores per-session UI preferences.
package prefs

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/storefront/internal/storage"
)

const (
	ThemeKey = "theme"

	ThemeLight = "light"
	ThemeDark  = "dark"
)

var ErrUnknownTheme = errors.New("unknown theme")

type Store struct {
	storage storage.Storage
}

func NewStore(st storage.Storage) *Store {
	return &Store{storage: st}
}

// Theme returns the saved theme, or ThemeLight when nothing valid is saved.
func (s *Store) Theme(ctx context.Context) string {
	var theme string
	if err := storage.LoadJSON(ctx, s.storage, ThemeKey, &theme); err != nil {
		return ThemeLight
	}
	if !valid(theme) {
		return ThemeLight
	}
	return theme
}

func (s *Store) SetTheme(ctx context.Context, theme string) error {
	if !valid(theme) {
		return fmt.Errorf("%w: %q", ErrUnknownTheme, theme)
	}
	if err := storage.SaveJSON(ctx, s.storage, ThemeKey, theme); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}

func valid(theme string) bool {
	return theme == ThemeLight || theme == ThemeDark
}
