package cache

import (
	"context"
	"testing"

	"github.com/drywaters/recapd/internal/model"
	"github.com/drywaters/recapd/internal/storage"
)

func TestPreferencesDefaults(t *testing.T) {
	t.Parallel()

	s := NewSettings(storage.NewMemory())
	prefs := s.Preferences(context.Background())

	if prefs.Language != "en" {
		t.Fatalf("language = %q, want en", prefs.Language)
	}
	if prefs.Style != model.StyleBullet {
		t.Fatalf("style = %q, want bullet", prefs.Style)
	}
	if prefs.Length != model.LengthMedium {
		t.Fatalf("length = %q, want medium", prefs.Length)
	}
	if prefs.Theme != "light" {
		t.Fatalf("theme = %q, want light", prefs.Theme)
	}
	if !prefs.AutoTranslate {
		t.Fatal("autoTranslate should default to true")
	}
}

func TestPreferencesRoundtrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewSettings(storage.NewMemory())

	want := model.UserPreferences{
		Language:      "de",
		Style:         model.StyleParagraph,
		Length:        model.LengthLong,
		Theme:         "dark",
		AutoTranslate: false,
	}
	if err := s.SetPreferences(ctx, want); err != nil {
		t.Fatalf("set preferences: %v", err)
	}

	got := s.Preferences(ctx)
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestAPIKeyAndModelPin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewSettings(storage.NewMemory())

	if key := s.APIKey(ctx); key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}

	if err := s.SetAPIKey(ctx, "test-key"); err != nil {
		t.Fatalf("set api key: %v", err)
	}
	if err := s.SetModelPin(ctx, "gemini-2.5-flash"); err != nil {
		t.Fatalf("set model pin: %v", err)
	}

	if key := s.APIKey(ctx); key != "test-key" {
		t.Fatalf("api key = %q, want test-key", key)
	}
	if pin := s.ModelPin(ctx); pin != "gemini-2.5-flash" {
		t.Fatalf("model pin = %q, want gemini-2.5-flash", pin)
	}
}
