// Package artifact is the run-scoped staging area between build jobs and
// image assembly. Entries are keyed by target triple and never persist
// across runs.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/turbokube/shipyard/pkg/matrix"
)

// ErrNotFound is returned by Get and WaitFor when no artifact exists for a triple
var ErrNotFound = errors.New("artifact not found")

// Artifact is one produced binary. Owned by the store once put.
type Artifact struct {
	Triple     string
	Mode       matrix.BuildMode
	Binary     []byte
	ProducedAt time.Time
}

// Store holds at most one artifact per triple. Puts for different triples
// never interfere. A second put for the same triple overwrites the first.
type Store struct {
	mu       sync.Mutex
	entries  map[string]*Artifact
	waiters  map[string][]chan *Artifact
	finished bool
}

func NewStore() *Store {
	return &Store{
		entries: make(map[string]*Artifact),
		waiters: make(map[string][]chan *Artifact),
	}
}

func (s *Store) Put(a *Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, overwrite := s.entries[a.Triple]; overwrite {
		zap.L().Debug("artifact overwritten", zap.String("triple", a.Triple))
	}
	s.entries[a.Triple] = a
	for _, w := range s.waiters[a.Triple] {
		w <- a
	}
	delete(s.waiters, a.Triple)
}

func (s *Store) Get(triple string) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.entries[triple]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, triple)
	}
	return a, nil
}

// Finish marks the producing stage as complete. Pending and future waits
// for absent triples fail immediately instead of running out the timeout.
func (s *Store) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
	for triple, ws := range s.waiters {
		for _, w := range ws {
			close(w)
		}
		delete(s.waiters, triple)
	}
}

// WaitFor blocks until an artifact for triple is present, the store is
// finished without one, or ctx expires. Absence is ErrNotFound either way.
func (s *Store) WaitFor(ctx context.Context, triple string) (*Artifact, error) {
	s.mu.Lock()
	if a, ok := s.entries[triple]; ok {
		s.mu.Unlock()
		return a, nil
	}
	if s.finished {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, triple)
	}
	w := make(chan *Artifact, 1)
	s.waiters[triple] = append(s.waiters[triple], w)
	s.mu.Unlock()

	select {
	case a, ok := <-w:
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, triple)
		}
		return a, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, triple, ctx.Err())
	}
}
