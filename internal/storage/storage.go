package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Storage defines the interface for attachment storage backends
type Storage interface {
	Put(ctx context.Context, objectName string, reader io.Reader) (PutResult, error)
	Get(ctx context.Context, objectName string) (io.ReadCloser, error)
	Delete(ctx context.Context, objectName string) error
	URL(objectName string) string
}

// PutResult describes what was written
type PutResult struct {
	Size   int64
	SHA256 string
}

// LocalStorage implements Storage using local filesystem
type LocalStorage struct {
	baseDir string
	baseURL string
}

// NewLocalStorage creates a new local filesystem storage backend
func NewLocalStorage(baseDir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalStorage{
		baseDir: baseDir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func (s *LocalStorage) path(objectName string) (string, error) {
	clean := filepath.Clean("/" + objectName)
	if clean == "/" {
		return "", fmt.Errorf("invalid object name %q", objectName)
	}
	return filepath.Join(s.baseDir, clean), nil
}

// URL returns the download location of an object
func (s *LocalStorage) URL(objectName string) string {
	return fmt.Sprintf("%s/files/%s", s.baseURL, strings.TrimPrefix(objectName, "/"))
}

func (s *LocalStorage) Put(ctx context.Context, objectName string, reader io.Reader) (PutResult, error) {
	fullPath, err := s.path(objectName)
	if err != nil {
		return PutResult{}, err
	}

	// Create directory if needed
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return PutResult{}, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return PutResult{}, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	hash := sha256.New()
	n, err := io.Copy(io.MultiWriter(file, hash), reader)
	if err != nil {
		return PutResult{}, fmt.Errorf("failed to write file: %w", err)
	}

	return PutResult{Size: n, SHA256: hex.EncodeToString(hash.Sum(nil))}, nil
}

func (s *LocalStorage) Get(ctx context.Context, objectName string) (io.ReadCloser, error) {
	fullPath, err := s.path(objectName)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func (s *LocalStorage) Delete(ctx context.Context, objectName string) error {
	fullPath, err := s.path(objectName)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
