// Package secret stores the single credential used to reach the remote assistant.
package secret

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/peterbourgon/diskv/v3"
)

// ErrNotFound is returned by Get when no credential is stored
var ErrNotFound = errors.New("credential not set")

// EnvKey is read by WithEnvFallback when the file store is empty
const EnvKey = "ANTHROPIC_API_KEY"

const credentialKey = "api_key"

// Source is an opaque get/set/delete store for one credential string
type Source interface {
	Get() (string, error)
	Set(value string) error
	Delete() error
}

// Store keeps the credential in a file under a private directory
type Store struct {
	d *diskv.Diskv
}

// New opens a file-backed store rooted at dir
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create secrets dir: %w", err)
	}
	return &Store{d: diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    func(string) []string { return []string{} },
		FilePerm:     0600,
		PathPerm:     0700,
		CacheSizeMax: 0,
	})}, nil
}

// Get returns the stored credential or ErrNotFound
func (s *Store) Get() (string, error) {
	if !s.d.Has(credentialKey) {
		return "", ErrNotFound
	}
	val, err := s.d.Read(credentialKey)
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	v := strings.TrimSpace(string(val))
	if v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

// Set replaces the stored credential
func (s *Store) Set(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("credential is empty")
	}
	if err := s.d.Write(credentialKey, []byte(value)); err != nil {
		return fmt.Errorf("write credential: %w", err)
	}
	return nil
}

// Delete removes the credential; deleting a missing credential is not an error
func (s *Store) Delete() error {
	if !s.d.Has(credentialKey) {
		return nil
	}
	if err := s.d.Erase(credentialKey); err != nil {
		return fmt.Errorf("erase credential: %w", err)
	}
	return nil
}

type envFallback struct {
	Source
	lookup func(string) string
}

// WithEnvFallback wraps src so Get falls back to the ANTHROPIC_API_KEY
// environment variable when nothing is stored.
func WithEnvFallback(src Source) Source {
	return &envFallback{Source: src, lookup: os.Getenv}
}

func (e *envFallback) Get() (string, error) {
	v, err := e.Source.Get()
	if err == nil || !errors.Is(err, ErrNotFound) {
		return v, err
	}
	if env := strings.TrimSpace(e.lookup(EnvKey)); env != "" {
		return env, nil
	}
	return "", ErrNotFound
}
