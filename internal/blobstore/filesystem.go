package blobstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrBlobNotFound indicates no payload exists under the requested key.
	ErrBlobNotFound = errors.New("blobstore: blob not found")
	// ErrInvalidKey indicates the key would escape the store root.
	ErrInvalidKey = errors.New("blobstore: invalid key")
)

// Store persists opaque audio payloads keyed by filename.
type Store interface {
	Save(key string, payload io.Reader) error
	Open(key string) (io.ReadCloser, error)
	Remove(key string) error
}

type filesystemStore struct {
	root string
}

// NewFilesystemStore creates the root directory if needed and returns a
// disk-backed Store.
func NewFilesystemStore(root string) (Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("blobstore: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &filesystemStore{root: root}, nil
}

func (s *filesystemStore) path(key string) (string, error) {
	cleaned := filepath.Base(strings.TrimSpace(key))
	if cleaned == "" || cleaned == "." || cleaned == ".." || cleaned != key {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.root, cleaned), nil
}

func (s *filesystemStore) Save(key string, payload io.Reader) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}
	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, payload); err != nil {
		file.Close()
		os.Remove(target)
		return err
	}
	return file.Close()
}

func (s *filesystemStore) Open(key string) (io.ReadCloser, error) {
	target, err := s.path(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(target)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (s *filesystemStore) Remove(key string) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}
	err = os.Remove(target)
	if errors.Is(err, os.ErrNotExist) {
		return ErrBlobNotFound
	}
	return err
}
