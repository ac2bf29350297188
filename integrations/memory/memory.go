// Package memory is an in-process document store used for dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aqlanhadi/kisht/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps documents in a map guarded by a mutex
type Store struct {
	mu   sync.RWMutex
	docs map[string]store.Fields

	// FailCommit, when set, is consulted before every commit and its error
	// returned instead of applying the writes.
	FailCommit func(writes []store.Write) error

	commits int
}

// New returns an empty store
func New() *Store {
	return &Store{docs: map[string]store.Fields{}}
}

// Get returns a copy of the document at path
func (s *Store) Get(ctx context.Context, path string) (*store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.docs[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, store.ErrNotFound)
	}
	return &store.Document{Path: path, Fields: fields.Clone()}, nil
}

// Query returns the direct children of collection that match every filter,
// ordered by path
func (s *Store) Query(ctx context.Context, collection string, filters []store.Filter, limit int) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := collection + "/"
	paths := make([]string, 0)
	for path := range s.docs {
		if !strings.HasPrefix(path, prefix) || strings.Contains(path[len(prefix):], "/") {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)

	docs := []store.Document{}
	for _, path := range paths {
		fields := s.docs[path]
		if !matches(fields, filters) {
			continue
		}
		docs = append(docs, store.Document{Path: path, Fields: fields.Clone()})
		if limit > 0 && len(docs) >= limit {
			break
		}
	}
	return docs, nil
}

// Commit checks every precondition before applying any write
func (s *Store) Commit(ctx context.Context, writes []store.Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commits++
	if s.FailCommit != nil {
		if err := s.FailCommit(writes); err != nil {
			return err
		}
	}

	for _, w := range writes {
		_, exists := s.docs[w.Path]
		switch w.Precondition {
		case store.MustExist:
			if !exists {
				return fmt.Errorf("%s does not exist: %w", w.Path, store.ErrPreconditionFailed)
			}
		case store.MustNotExist:
			if exists {
				return fmt.Errorf("%s already exists: %w", w.Path, store.ErrPreconditionFailed)
			}
		}
	}

	for _, w := range writes {
		if w.IsDelete() {
			delete(s.docs, w.Path)
			continue
		}
		s.apply(w.Path, w.Fields, w.Mask)
	}
	return nil
}

// Patch merges fields into the document, creating it when absent
func (s *Store) Patch(ctx context.Context, path string, fields store.Fields, mask []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[path] = s.docs[path].Merge(fields, mask)
	return nil
}

// Delete removes the document. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, path)
	return nil
}

// Commits returns how many commits were attempted
func (s *Store) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}

// Len returns the number of stored documents
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *Store) apply(path string, fields store.Fields, mask []string) {
	if len(mask) == 0 {
		s.docs[path] = fields.Clone()
		return
	}
	s.docs[path] = s.docs[path].Merge(fields, mask)
}

func matches(fields store.Fields, filters []store.Filter) bool {
	for _, f := range filters {
		if fmt.Sprint(fields[f.Field]) != fmt.Sprint(f.Value) {
			return false
		}
	}
	return true
}
