// internal/domain/storage/storage.go
package storage

import "context"

// Storage abstracts the blob store holding uploaded wills and recorded
// messages. Only the deletion executor uses it.
type Storage interface {
	Delete(ctx context.Context, paths []string) error
}
