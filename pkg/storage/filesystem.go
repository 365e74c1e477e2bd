package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage persists objects on disk under a base directory. The API serves
// the directory statically so issued URLs resolve in development.
type LocalStorage struct {
	baseDir string
	urls    URLBuilder
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string, urls URLBuilder) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./media-files"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir, urls: urls}, nil
}

// Dir returns the base directory.
func (s *LocalStorage) Dir() string {
	return s.baseDir
}

func (s *LocalStorage) Put(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &UploadError{Key: key, Err: err}
	}
	path, err := s.resolve(key)
	if err != nil {
		return "", &UploadError{Key: key, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", &UploadError{Key: key, Err: fmt.Errorf("prepare media directory: %w", err)}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return "", &UploadError{Key: key, Err: fmt.Errorf("create media file: %w", err)}
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return "", &UploadError{Key: key, Err: fmt.Errorf("write media file: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return "", &UploadError{Key: key, Err: fmt.Errorf("close media file: %w", err)}
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", &UploadError{Key: key, Err: fmt.Errorf("chmod media file: %w", err)}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", &UploadError{Key: key, Err: fmt.Errorf("commit media file: %w", err)}
	}
	return s.urls.URL(key), nil
}

func (s *LocalStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("read media file: %w", err)
	}
	return data, nil
}

// Delete removes the file behind rawURL. Missing files count as deleted.
func (s *LocalStorage) Delete(ctx context.Context, rawURL string) (bool, error) {
	key, ok := s.urls.KeyFromURL(rawURL)
	if !ok {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, err := s.resolve(key)
	if err != nil {
		return false, nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("delete media file: %w", err)
	}
	return true, nil
}

func (s *LocalStorage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	objects := make([]ObjectInfo, 0)
	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list media files: %w", err)
	}
	return objects, nil
}

func (s *LocalStorage) URL(key string) string {
	return s.urls.URL(key)
}

func (s *LocalStorage) KeyFromURL(rawURL string) (string, bool) {
	return s.urls.KeyFromURL(rawURL)
}

func (s *LocalStorage) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimLeft(key, "/")))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.baseDir, clean), nil
}
