package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/drywaters/recapd/internal/model"
	"github.com/drywaters/recapd/internal/storage"
)

// Storage keys. Preferences live in the bulky local namespace;
// credentials and the model pin replicate through the sync namespace.
const (
	preferencesKey = "user_preferences"
	apiKeyKey      = "geminiApiKey"
	modelKey       = "geminiModel"
)

// Settings reads and writes user preferences and Gemini credentials
// through the persistent store
type Settings struct {
	store storage.Store
}

// NewSettings creates a Settings accessor on the given store
func NewSettings(store storage.Store) *Settings {
	return &Settings{store: store}
}

// Preferences returns the persisted preferences, falling back to
// defaults for anything missing or unreadable
func (s *Settings) Preferences(ctx context.Context) model.UserPreferences {
	prefs := model.DefaultPreferences()

	value, _, err := s.store.Get(ctx, storage.NamespaceLocal, preferencesKey)
	if err != nil {
		slog.Warn("failed to read preferences", "error", err)
		return prefs
	}
	if value == nil {
		return prefs
	}

	if err := json.Unmarshal(value, &prefs); err != nil {
		slog.Warn("stored preferences malformed", "error", err)
		return model.DefaultPreferences()
	}

	return prefs
}

// SetPreferences persists the given preferences
func (s *Settings) SetPreferences(ctx context.Context, prefs model.UserPreferences) error {
	value, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	if err := s.store.Set(ctx, storage.NamespaceLocal, preferencesKey, value, nil); err != nil {
		return fmt.Errorf("failed to store preferences: %w", err)
	}

	return nil
}

// APIKey returns the stored Gemini API key, or "" when unset
func (s *Settings) APIKey(ctx context.Context) string {
	return s.getString(ctx, storage.NamespaceSync, apiKeyKey)
}

// SetAPIKey persists the Gemini API key
func (s *Settings) SetAPIKey(ctx context.Context, key string) error {
	return s.setString(ctx, storage.NamespaceSync, apiKeyKey, key)
}

// ModelPin returns the user-pinned Gemini model name, or "" when unset
func (s *Settings) ModelPin(ctx context.Context) string {
	return s.getString(ctx, storage.NamespaceSync, modelKey)
}

// SetModelPin persists the pinned Gemini model name
func (s *Settings) SetModelPin(ctx context.Context, name string) error {
	return s.setString(ctx, storage.NamespaceSync, modelKey, name)
}

func (s *Settings) getString(ctx context.Context, namespace, key string) string {
	value, _, err := s.store.Get(ctx, namespace, key)
	if err != nil {
		slog.Warn("failed to read setting", "key", key, "error", err)
		return ""
	}
	if value == nil {
		return ""
	}

	var str string
	if err := json.Unmarshal(value, &str); err != nil {
		slog.Warn("stored setting malformed", "key", key, "error", err)
		return ""
	}

	return str
}

func (s *Settings) setString(ctx context.Context, namespace, key, value string) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal setting %s: %w", key, err)
	}

	if err := s.store.Set(ctx, namespace, key, encoded, nil); err != nil {
		return fmt.Errorf("failed to store setting %s: %w", key, err)
	}

	return nil
}
