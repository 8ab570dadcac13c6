package detection

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Loader is implemented by analyzers that need to prepare weights before the first job.
type Loader interface {
	Load(ctx context.Context) error
}

// ModelState tracks whether the detection models are ready. It is set once at
// startup and read by the worker before every job.
type ModelState struct {
	loaded   atomic.Bool
	loadedAt atomic.Int64
}

// Load runs every loader and marks the models ready only if all of them succeed.
func (s *ModelState) Load(ctx context.Context, loaders ...Loader) error {
	for _, l := range loaders {
		if err := l.Load(ctx); err != nil {
			s.loaded.Store(false)
			return fmt.Errorf("load models: %w", err)
		}
	}
	s.loadedAt.Store(time.Now().UTC().UnixNano())
	s.loaded.Store(true)
	return nil
}

// Loaded reports whether Load completed. A nil state is never loaded.
func (s *ModelState) Loaded() bool {
	if s == nil {
		return false
	}
	return s.loaded.Load()
}

// LoadedAt returns when the models became ready, or the zero time.
func (s *ModelState) LoadedAt() time.Time {
	if !s.Loaded() {
		return time.Time{}
	}
	return time.Unix(0, s.loadedAt.Load()).UTC()
}
