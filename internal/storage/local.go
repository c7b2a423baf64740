package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/musefactory/mediacache/internal/uid"
)

// LocalStore implements ObjectStore using the local filesystem. Objects
// are stored as files under a root directory, with the key's path
// separators mapped to directories ({tenant}/{hash}.{ext}).
type LocalStore struct {
	// RootDir is the base directory for all object data.
	RootDir string
	// PublicURL is the prefix under which RootDir is served. Empty falls
	// back to file:// URLs, which only make sense for local development.
	PublicURL string
}

// NewLocalStore creates a LocalStore rooted at rootDir. It creates the
// root and the .tmp directory used for atomic writes.
func NewLocalStore(rootDir, publicURL string) (*LocalStore, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root directory %q: %w", rootDir, err)
	}
	if err := os.MkdirAll(filepath.Join(rootDir, ".tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}
	return &LocalStore{RootDir: rootDir, PublicURL: publicURL}, nil
}

// CleanTempFiles removes leftovers in .tmp from interrupted writes.
// Called on startup.
func (s *LocalStore) CleanTempFiles() error {
	tmpDir := filepath.Join(s.RootDir, ".tmp")
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading temp directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			os.Remove(filepath.Join(tmpDir, entry.Name()))
		}
	}
	return nil
}

func (s *LocalStore) objectPath(key string) string {
	return filepath.Join(s.RootDir, filepath.FromSlash(key))
}

// Exists checks for the object file. A missing file is (false, nil); any
// other stat failure propagates as a storage error.
func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	info, err := os.Stat(s.objectPath(key))
	if err == nil {
		return !info.IsDir(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("checking object existence %q: %w", key, err)
}

// Put writes the payload using the atomic write pattern: temp file,
// fsync, rename. Redundant puts for the same key replace the file with
// identical content, which keeps the concurrent-miss race harmless.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	objPath := s.objectPath(key)
	if err := os.MkdirAll(filepath.Dir(objPath), 0o755); err != nil {
		return fmt.Errorf("creating parent directories for %q: %w", key, err)
	}

	tmpPath := filepath.Join(s.RootDir, ".tmp", "tmp-"+uid.New())
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing object data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, objPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file to final path: %w", err)
	}
	return nil
}

// URLFor builds the public URL: configured prefix, or a file:// URL when
// none is set.
func (s *LocalStore) URLFor(key string) string {
	if s.PublicURL != "" {
		return strings.TrimSuffix(s.PublicURL, "/") + "/" + key
	}
	return "file://" + s.objectPath(key)
}

// List walks the root directory and returns objects under prefix. The
// .tmp directory is excluded.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var infos []ObjectInfo
	err := filepath.WalkDir(s.RootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".tmp" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(s.RootDir, path)
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
		infos = append(infos, ObjectInfo{Key: key, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing local objects: %w", err)
	}
	return infos, nil
}

// HealthCheck verifies the root directory is accessible.
func (s *LocalStore) HealthCheck(ctx context.Context) error {
	_, err := os.Stat(s.RootDir)
	return err
}

// Name identifies the provider.
func (s *LocalStore) Name() string { return "local" }

// Ensure LocalStore implements ObjectStore at compile time.
var _ ObjectStore = (*LocalStore)(nil)
