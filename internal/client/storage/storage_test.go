package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_FileNotExist(t *testing.T) {
	cf := NewCredentialFile(filepath.Join(t.TempDir(), "credential.json"), nil)
	token, err := cf.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if token != "" {
		t.Errorf("expected no credential, got %q", token)
	}
}

func TestSaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credential.json")
	cf := NewCredentialFile(path, nil)

	if err := cf.Save("tok123"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// read back raw to check the well-known key
	buf, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(buf, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if raw["token"] != "tok123" {
		t.Errorf("unexpected saved data: %s", buf)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o; want 600", perm)
	}

	token, err := cf.Load()
	if err != nil || token != "tok123" {
		t.Errorf("Load = %q, %v; want tok123", token, err)
	}

	if err := cf.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if err := cf.Clear(); err != nil {
		t.Fatalf("second Clear failed: %v", err)
	}
	token, err = cf.Load()
	if err != nil || token != "" {
		t.Errorf("Load after Clear = %q, %v; want empty", token, err)
	}
}

func TestSealedCredential(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.json")
	aead, err := NewAEADFromSecret([]byte("storage-key"))
	if err != nil {
		t.Fatalf("derive AEAD: %v", err)
	}
	cf := NewCredentialFile(path, aead)
	if err := cf.Save("tok123"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	buf, _ := os.ReadFile(path)
	if strings.Contains(string(buf), "tok123") {
		t.Errorf("credential stored in clear: %s", buf)
	}

	token, err := cf.Load()
	if err != nil || token != "tok123" {
		t.Errorf("Load = %q, %v; want tok123", token, err)
	}

	// sealed file without key
	if _, err := NewCredentialFile(path, nil).Load(); err == nil {
		t.Error("expected error loading sealed credential without key")
	}
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential.json")
	if err := os.WriteFile(path, []byte("{"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewCredentialFile(path, nil).Load(); err == nil {
		t.Error("expected decode error")
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory("a")
	if tok, _ := m.Load(); tok != "a" {
		t.Errorf("Load = %q; want a", tok)
	}
	_ = m.Save("b")
	if tok, _ := m.Load(); tok != "b" {
		t.Errorf("Load = %q; want b", tok)
	}
	_ = m.Clear()
	if tok, _ := m.Load(); tok != "" {
		t.Errorf("Load = %q; want empty", tok)
	}
}
