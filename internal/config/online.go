package config

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// OnlineSnapshot is the read-mostly process state every request handler
// consults before doing work.
type OnlineSnapshot struct {
	ForceOffline bool
	RefreshedAt  time.Time
}

// OnlineState holds the current snapshot behind an atomic pointer. Readers
// take a consistent copy; the refresher swaps the whole value, never
// mutates it in place. It is injected into handlers, not a package global.
type OnlineState struct {
	current atomic.Pointer[OnlineSnapshot]
}

func NewOnlineState() *OnlineState {
	s := &OnlineState{}
	s.current.Store(&OnlineSnapshot{RefreshedAt: time.Now().UTC()})
	return s
}

// Snapshot returns the latest state.
func (s *OnlineState) Snapshot() OnlineSnapshot {
	return *s.current.Load()
}

// Set swaps in a new snapshot.
func (s *OnlineState) Set(forceOffline bool) {
	s.current.Store(&OnlineSnapshot{
		ForceOffline: forceOffline,
		RefreshedAt:  time.Now().UTC(),
	})
}

// StartRefresher polls fetch on the given interval until the context is
// cancelled. A failed poll keeps the previous snapshot.
func (s *OnlineState) StartRefresher(ctx context.Context, interval time.Duration, fetch func() (bool, error)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				offline, err := fetch()
				if err != nil {
					log.Printf("online state refresh failed: %v", err)
					continue
				}
				s.Set(offline)
			}
		}
	}()
}
