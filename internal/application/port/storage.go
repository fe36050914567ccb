package port

import "context"

// FileStorage stores attachment bytes under relative keys.
// Read of a missing key returns an error wrapping entity.ErrNotFound; Delete of a missing key is a no-op.
type FileStorage interface {
	Save(ctx context.Context, key string, content []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) bool
	Delete(ctx context.Context, key string) error
}

// Locker provides critical sections keyed by an arbitrary string.
// The returned release function must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}
