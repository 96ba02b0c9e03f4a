package prefs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStore_CustomLogoRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.json")
	s := New(path)

	logo, err := s.CustomLogo()
	if err != nil {
		t.Fatalf("CustomLogo on missing file: %v", err)
	}
	if logo != "" {
		t.Fatalf("expected empty logo, got %q", logo)
	}

	if err := s.SetCustomLogo("https://cdn/logo.png"); err != nil {
		t.Fatalf("SetCustomLogo: %v", err)
	}

	reopened := New(path)
	logo, err = reopened.CustomLogo()
	if err != nil {
		t.Fatalf("CustomLogo: %v", err)
	}
	if logo != "https://cdn/logo.png" {
		t.Fatalf("unexpected logo %q", logo)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %v", info.Mode().Perm())
	}
}

func TestStore_EmptyValueRemovesKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	s := New(path)

	if err := s.Set("theme", "dark"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.SetCustomLogo("x"); err != nil {
		t.Fatalf("SetCustomLogo: %v", err)
	}
	if err := s.SetCustomLogo(""); err != nil {
		t.Fatalf("SetCustomLogo(\"\"): %v", err)
	}

	logo, _ := s.CustomLogo()
	theme, _ := s.Get("theme")
	if logo != "" || theme != "dark" {
		t.Fatalf("unexpected values logo=%q theme=%q", logo, theme)
	}
}

func TestStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := New(path).CustomLogo(); err == nil {
		t.Fatalf("expected decode error")
	}
}
