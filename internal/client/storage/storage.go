// Package storage persists the session credential on the client so that it
// survives restarts of the client process.
package storage

import (
	"crypto/cipher"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// credentialDoc is the on-disk layout: one well-known "token" key.
type credentialDoc struct {
	Token  string `json:"token"`
	Sealed bool   `json:"sealed,omitempty"`
}

// CredentialFile stores the credential as JSON at a fixed path. When an
// AEAD is supplied the token is sealed before it is written.
type CredentialFile struct {
	path string
	aead cipher.AEAD
	mu   sync.Mutex
}

// NewCredentialFile returns a file-backed credential store. aead may be nil.
func NewCredentialFile(path string, aead cipher.AEAD) *CredentialFile {
	return &CredentialFile{path: path, aead: aead}
}

// Path returns the backing file path.
func (c *CredentialFile) Path() string {
	return c.path
}

// Load returns the persisted credential, or "" if none is stored.
func (c *CredentialFile) Load() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()

	var doc credentialDoc
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return "", fmt.Errorf("decode %s: %w", c.path, err)
	}
	if !doc.Sealed {
		return doc.Token, nil
	}
	if c.aead == nil {
		return "", fmt.Errorf("%s holds a sealed credential but no storage key is configured", c.path)
	}
	return open(c.aead, doc.Token)
}

// Save persists token, replacing any previous credential.
func (c *CredentialFile) Save(token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc := credentialDoc{Token: token}
	if c.aead != nil {
		sealed, err := seal(c.aead, token)
		if err != nil {
			return err
		}
		doc = credentialDoc{Token: sealed, Sealed: true}
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".credential-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("encode credential: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), c.path)
}

// Clear removes the persisted credential. A missing file is not an error.
func (c *CredentialFile) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Memory keeps the credential in process memory only.
type Memory struct {
	mu    sync.Mutex
	token string
}

// NewMemory returns a Memory holding token.
func NewMemory(token string) *Memory {
	return &Memory{token: token}
}

func (m *Memory) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *Memory) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
