// internal/infra/storage/filesystem.go
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemStorage deletes blobs from a local directory tree. Paths stored
// in the database are relative to the configured root.
type FilesystemStorage struct {
	root string
}

func NewFilesystemStorage(root string) *FilesystemStorage {
	return &FilesystemStorage{root: root}
}

// Delete removes each path. Missing files are not errors: deletion retries
// after a partial failure must be able to converge.
func (s *FilesystemStorage) Delete(ctx context.Context, paths []string) error {
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		full, err := s.resolve(p)
		if err != nil {
			return err
		}
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove blob %s: %w", p, err)
		}
	}
	return nil
}

// resolve joins the path against the root and rejects escapes.
func (s *FilesystemStorage) resolve(p string) (string, error) {
	full := filepath.Join(s.root, filepath.Clean("/"+p))
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("blob path %q escapes storage root", p)
	}
	return full, nil
}
