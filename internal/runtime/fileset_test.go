package runtime

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFingerprintIsOrderIndependentAndContentSensitive(t *testing.T) {
	a := NewFileSet(map[string]string{"a.yml": "one", "b.yml": "two"})
	b := NewFileSet(map[string]string{"b.yml": "two", "a.yml": "one"})
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("same contents fingerprinted differently: %s vs %s", a.Fingerprint(), b.Fingerprint())
	}

	c := NewFileSet(map[string]string{"a.yml": "one", "b.yml": "changed"})
	if a.Fingerprint() == c.Fingerprint() {
		t.Fatalf("changed contents fingerprinted identically")
	}
}

func TestLoadDirPicksUpYAMLOnly(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "rule.yml"), []byte("title: x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "nested.yaml"), []byte("title: y"), 0644); err != nil {
		t.Fatal(err)
	}

	fs, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if fs.Len() != 2 {
		t.Fatalf("expected 2 files, got %d: %v", fs.Len(), fs.Names())
	}
	if _, ok := fs.Source("sub/nested.yaml"); !ok {
		t.Fatalf("nested file missing: %v", fs.Names())
	}
}
