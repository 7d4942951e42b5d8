// Package store holds the storage collaborators: the artifact store owning
// rendered documents and the keyed cache of recent artifacts.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// MaxArtifactSize caps a rendered document at 1MB.
	MaxArtifactSize = 1024 * 1024
)

var (
	ErrArtifactNotFound  = errors.New("artifact not found")
	ErrArtifactTooLarge  = errors.New("artifact exceeds maximum size")
	ErrInvalidArtifact   = errors.New("invalid artifact name")
	ErrArtifactTraversal = errors.New("path traversal not allowed")
)

// ArtifactStore provides write/read operations for rendered documents. The
// renderer owns artifact creation; the HTTP layer reads them back for
// download.
type ArtifactStore interface {
	// Write persists content under name atomically and returns a storage
	// reference resolvable by Read.
	Write(ctx context.Context, name, content string) (ref string, err error)

	// Read retrieves artifact bytes by name.
	Read(ctx context.Context, name string) ([]byte, error)

	// Exists reports whether an artifact with the given name exists.
	Exists(ctx context.Context, name string) (bool, error)
}

// LocalArtifactStore implements ArtifactStore on the local filesystem.
// Writes are write-then-rename so concurrent writers for the same name
// cannot corrupt each other's output; last writer wins.
type LocalArtifactStore struct {
	rootDir string
}

func NewLocalArtifactStore(rootDir string) (*LocalArtifactStore, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("artifact root directory is required")
	}

	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact root directory: %w", err)
	}

	return &LocalArtifactStore{rootDir: rootDir}, nil
}

func (s *LocalArtifactStore) Write(ctx context.Context, name, content string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	if len(content) > MaxArtifactSize {
		return "", ErrArtifactTooLarge
	}
	if len(content) == 0 {
		return "", fmt.Errorf("artifact content cannot be empty")
	}

	fullPath := filepath.Join(s.rootDir, name)

	// Unique temp file per writer, then an atomic rename onto the final
	// name.
	tmp, err := os.CreateTemp(s.rootDir, name+".tmp.*")
	if err != nil {
		return "", fmt.Errorf("creating temp artifact: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp artifact: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming artifact: %w", err)
	}

	return name, nil
}

func (s *LocalArtifactStore) Read(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(filepath.Join(s.rootDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("reading artifact: %w", err)
	}

	return content, nil
}

func (s *LocalArtifactStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}

	_, err := os.Stat(filepath.Join(s.rootDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking artifact existence: %w", err)
	}
	return true, nil
}

// validateName ensures names are flat and stay under the root.
func validateName(name string) error {
	if name == "" {
		return ErrInvalidArtifact
	}
	if strings.Contains(name, "..") {
		return ErrArtifactTraversal
	}
	if filepath.IsAbs(name) || strings.ContainsAny(name, `/\`) {
		return ErrArtifactTraversal
	}
	return nil
}
