package genstore

import (
	"context"
	"sync"
	"time"
)

// tagGen is one tag's counter and the last time it was bumped.
type tagGen struct {
	n       uint64
	touched time.Time
}

// LocalGenStore keeps tag generations in process memory. It is the default
// store of a cache that was given none, so generations are private to that
// cache and lost with it.
//
// With a cleanup interval and retention the store prunes tags that were not
// bumped within retention. Untracked tags read as a floor that pruning
// raises past every generation it dropped, so a pruned tag never returns to
// a value an entry may have captured.
type LocalGenStore struct {
	mu    sync.RWMutex
	tags  map[string]tagGen
	floor uint64
	now   func() time.Time

	stop    chan struct{}
	stopped sync.WaitGroup
	once    sync.Once
}

var _ GenStore = (*LocalGenStore)(nil)

type LocalOption func(*LocalGenStore)

// WithLocalClock replaces time.Now for bump timestamps and pruning.
func WithLocalClock(now func() time.Time) LocalOption {
	return func(s *LocalGenStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewLocalGenStore(cleanupInterval, retention time.Duration, opts ...LocalOption) *LocalGenStore {
	s := &LocalGenStore{tags: make(map[string]tagGen), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if cleanupInterval > 0 && retention > 0 {
		s.stop = make(chan struct{})
		s.stopped.Add(1)
		go s.prune(cleanupInterval, retention)
	}
	return s
}

func (s *LocalGenStore) prune(every, retention time.Duration) {
	defer s.stopped.Done()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.Cleanup(retention)
		case <-s.stop:
			return
		}
	}
}

func (s *LocalGenStore) Snapshot(_ context.Context, tag string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen(tag), nil
}

// gen must be called with mu held.
func (s *LocalGenStore) gen(tag string) uint64 {
	if g, ok := s.tags[tag]; ok {
		return g.n
	}
	return s.floor
}

// SnapshotMany reads every tag under one read lock.
func (s *LocalGenStore) SnapshotMany(_ context.Context, tags []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(tags))
	s.mu.RLock()
	for _, tag := range tags {
		out[tag] = s.gen(tag)
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *LocalGenStore) Bump(_ context.Context, tag string) (uint64, error) {
	at := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	g := tagGen{n: s.gen(tag) + 1, touched: at}
	s.tags[tag] = g
	return g.n, nil
}

// Cleanup drops tags not bumped within retention.
func (s *LocalGenStore) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := s.now().Add(-retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	for tag, g := range s.tags {
		if g.touched.Before(cutoff) {
			s.floor = max(s.floor, g.n+1)
			delete(s.tags, tag)
		}
	}
}

// Len reports how many tags are tracked.
func (s *LocalGenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tags)
}

// Close stops the cleanup loop. Safe to call more than once.
func (s *LocalGenStore) Close(context.Context) error {
	s.once.Do(func() {
		if s.stop != nil {
			close(s.stop)
			s.stopped.Wait()
		}
	})
	return nil
}
