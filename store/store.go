// Package store defines the document store every backend implements.
//
// Documents are addressed by slash-separated paths that alternate collection
// and document ids, e.g. users/u1/customer/A17. A collection path has an odd
// number of segments.
package store

import (
	"context"
	"strings"
)

// Precondition guards a write inside a commit
type Precondition int

const (
	None Precondition = iota
	MustExist
	MustNotExist
)

// Document is a stored document and its fields
type Document struct {
	Path   string
	Fields Fields
}

// ID returns the last segment of the document path
func (d Document) ID() string {
	return LastSegment(d.Path)
}

// Filter is an equality match on a top-level field
type Filter struct {
	Field string
	Value any
}

// Write is one element of an atomic commit. A nil Fields deletes the
// document. A non-empty Mask limits the update to the listed fields.
type Write struct {
	Path         string
	Fields       Fields
	Mask         []string
	Precondition Precondition
}

// IsDelete reports whether the write removes its document
func (w Write) IsDelete() bool {
	return w.Fields == nil
}

// Store is a hierarchical document store
type Store interface {
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, path string) (*Document, error)
	// Query lists the documents of a collection matching every filter.
	// A limit of zero means no limit.
	Query(ctx context.Context, collection string, filters []Filter, limit int) ([]Document, error)
	// Commit applies all writes or none. A failed precondition yields
	// ErrPreconditionFailed.
	Commit(ctx context.Context, writes []Write) error
	// Patch merges fields into a document, creating it if needed.
	Patch(ctx context.Context, path string, fields Fields, mask []string) error
	Delete(ctx context.Context, path string) error
}

// Join builds a path from its segments
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Split returns the parent collection path and the document id
func Split(path string) (collection, id string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

// LastSegment returns the final segment of a path
func LastSegment(path string) string {
	_, id := Split(path)
	return id
}
