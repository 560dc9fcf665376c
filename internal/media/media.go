// Package media stores lesson video files under an app-private directory.
package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pot-code/samba-client/internal/infrastructure/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ErrInvalidName returned when an upload has no usable file extension
var ErrInvalidName = errors.New("invalid media file name")

// extPattern extensions kept from uploaded file names
var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// Store media files on an afero filesystem. Files are named by the store,
// only paths inside Dir are ever checked or removed.
type Store struct {
	Fs     afero.Fs
	Dir    string
	ids    uuid.Generator
	logger *zap.Logger
}

// NewStore create a Store rooted at dir, the directory is created if missing
func NewStore(fs afero.Fs, dir string, ids uuid.Generator, logger *zap.Logger) (*Store, error) {
	dir = filepath.Clean(dir)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media dir %s: %w", dir, err)
	}
	return &Store{Fs: fs, Dir: dir, ids: ids, logger: logger}, nil
}

// IsLocal reports whether path names a file on this device rather than a remote URI
func IsLocal(path string) bool {
	if path == "" {
		return false
	}
	if strings.Contains(path, "://") || strings.HasPrefix(path, "content:") {
		return false
	}
	return true
}

// Owns reports whether path is a file inside the media directory
func (s *Store) Owns(path string) bool {
	if !IsLocal(path) {
		return false
	}
	rel, err := filepath.Rel(s.Dir, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Accepts reports whether path may be stored as a media reference: a remote
// URI, or a file owned by the store
func (s *Store) Accepts(path string) bool {
	return !IsLocal(path) || s.Owns(path)
}

// Save writes r under a generated name that keeps the extension of name, and
// returns the stored path
func (s *Store) Save(name string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !extPattern.MatchString(ext) {
		return "", ErrInvalidName
	}
	id, err := s.ids.Generate()
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, "media_"+id+ext)
	f, err := s.Fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		s.Fs.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// Exists reports whether a file owned by the store exists at path, other
// paths never exist
func (s *Store) Exists(path string) (bool, error) {
	if !s.Owns(path) {
		return false, nil
	}
	return afero.Exists(s.Fs, path)
}

// Delete removes the file at path. Remote URIs, paths outside the media
// directory and missing files are left alone and count as success.
func (s *Store) Delete(path string) error {
	if !IsLocal(path) {
		return nil
	}
	if !s.Owns(path) {
		s.logger.Warn("refusing to delete file outside the media dir",
			zap.String("media.path", path), zap.String("media.dir", s.Dir))
		return nil
	}
	err := s.Fs.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("media file already absent", zap.String("media.path", path))
		return nil
	}
	return err
}
