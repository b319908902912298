package pubfile

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/ekobi/goksi/ksierr"
)

// Fetcher retrieves the raw bytes of a publications file, typically a
// transport.Transport's GET against a configured URL.
type Fetcher func(ctx context.Context) ([]byte, error)

// Cache is a TTL'd, flock-guarded on-disk cache for the publications file,
// so every process on a host sharing Dir doesn't refetch on every
// verification. The flock guard matters because multiple processes may
// share one Dir and race to refresh the same file concurrently.
type Cache struct {
	Dir string
	TTL time.Duration
}

func (c *Cache) path() string {
	return filepath.Join(c.Dir, "publications.bin")
}

func (c *Cache) lockPath() string {
	return filepath.Join(c.Dir, "publications.bin.lock")
}

// Get returns a parsed File, serving a fresh-enough cached copy or calling
// fetch and refreshing the cache otherwise.
func (c *Cache) Get(ctx context.Context, fetch Fetcher) (*File, error) {
	if c.Dir == "" {
		b, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return Parse(b)
	}

	fl := flock.New(c.lockPath())
	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, ksierr.New(ksierr.IOError, "failed to lock publications cache: "+err.Error())
	}
	if locked {
		defer fl.Unlock()
	}

	if fi, err := os.Stat(c.path()); err == nil {
		if time.Since(fi.ModTime()) < c.TTL {
			if b, err := os.ReadFile(c.path()); err == nil {
				if f, err := Parse(b); err == nil {
					return f, nil
				}
			}
		}
	}

	b, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	f, err := Parse(b)
	if err != nil {
		return nil, err
	}
	if locked {
		_ = os.MkdirAll(c.Dir, 0o755)
		_ = os.WriteFile(c.path(), b, 0o644)
	}
	return f, nil
}
