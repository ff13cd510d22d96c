package storage

import "context"

// ObjectStore is the external media-storage collaborator. Uploads happen
// outside this service; the identity core only needs to release replaced
// references (old avatars and cover images).
type ObjectStore interface {
	Delete(ctx context.Context, ref string) error
}

// NoopStore discards delete requests. Used when no object store is wired.
type NoopStore struct{}

func (NoopStore) Delete(context.Context, string) error { return nil }
