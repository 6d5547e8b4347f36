package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
providers:
  openai:
    kind: openai
    api_key: sk-test
  my-anthropic:
    kind: anthropic
    api_key: ak-test
`

func TestLoadFile_ParsesProviderMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	reg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := reg.Lookup("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.APIKey != "sk-test" {
		t.Errorf("APIKey = %q, want sk-test", b.APIKey)
	}
}

func TestLoadFile_RejectsUnknownKind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")
	bad := "providers:\n  weird:\n    kind: not-a-kind\n    api_key: x\n"
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected an error for an unrecognized driver kind")
	}
}

func TestWatcher_ReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Close()

	if _, err := w.Current().Lookup("my-anthropic"); err != nil {
		t.Fatalf("expected my-anthropic to be present initially: %v", err)
	}

	updated := "providers:\n  openai:\n    kind: openai\n    api_key: sk-rotated\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("failed to rewrite fixture: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		b, err := w.Current().Lookup("openai")
		if err == nil && b.APIKey == "sk-rotated" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("watcher did not pick up the file change within the deadline")
}
