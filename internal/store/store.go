// Package store defines the replicated document store contract the game
// coordinator runs against. Documents live at slash-separated paths such as
// games/{id} or games/{id}/players/{playerId}; writes to a single document
// are serialized, and a batch commits atomically or not at all.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by point reads of missing documents.
	ErrNotFound = errors.New("document not found")
	// ErrPreconditionFailed aborts a batch whose MergeIf guard does not hold.
	ErrPreconditionFailed = errors.New("write precondition failed")
)

// Doc is a document snapshot.
type Doc struct {
	Path string
	Data map[string]any
}

// ID returns the final path segment.
func (d Doc) ID() string {
	if i := strings.LastIndex(d.Path, "/"); i >= 0 {
		return d.Path[i+1:]
	}
	return d.Path
}

// EventType describes a change delivered on a watch channel.
type EventType string

const (
	EventAdded    EventType = "added"
	EventModified EventType = "modified"
	EventRemoved  EventType = "removed"
)

// Event is one change notification. Watches deliver an initial EventAdded
// snapshot for every matching document, then incremental updates.
type Event struct {
	Type EventType
	Doc  Doc
}

// Filter is an equality constraint for Query.
type Filter struct {
	Field  string
	Equals any
}

// Increment is a field value sentinel: the stored number is adjusted by By.
type Increment struct {
	By int64
}

// ServerTimestamp is a field value sentinel resolved to the store's clock at
// commit time.
type ServerTimestamp struct{}

// Store is the replicated document store surface the game consumes. The
// backing technology is an external collaborator; implementations must
// serialize writes per document and apply batches atomically.
type Store interface {
	// Get reads one document. Returns ErrNotFound for missing paths.
	Get(ctx context.Context, path string) (Doc, error)
	// Set writes a full document, creating or replacing it.
	Set(ctx context.Context, path string, data map[string]any) error
	// Merge updates individual fields, creating the document if needed.
	Merge(ctx context.Context, path string, fields map[string]any) error
	// Commit applies every operation in the batch atomically.
	Commit(ctx context.Context, batch *Batch) error
	// Query returns documents of a collection matching every filter, up to
	// limit (no limit when limit <= 0).
	Query(ctx context.Context, collection string, filters []Filter, limit int) ([]Doc, error)
	// Watch subscribes to a document path or a collection path. The channel
	// closes when ctx is cancelled or the subscriber falls too far behind;
	// a closed channel is a recoverable condition and may be re-subscribed.
	Watch(ctx context.Context, path string) (<-chan Event, error)
	// Now returns the store's authoritative time.
	Now() time.Time
}

type opKind int

const (
	opSet opKind = iota
	opMerge
	opDelete
)

type batchOp struct {
	kind     opKind
	path     string
	fields   map[string]any
	guard    bool
	guardKey string
	guardVal any
}

// Batch accumulates writes that Commit applies as one atomic unit.
type Batch struct {
	ops []batchOp
}

func NewBatch() *Batch {
	return &Batch{}
}

// Set adds a full-document write.
func (b *Batch) Set(path string, data map[string]any) *Batch {
	b.ops = append(b.ops, batchOp{kind: opSet, path: path, fields: data})
	return b
}

// Merge adds a field-level update.
func (b *Batch) Merge(path string, fields map[string]any) *Batch {
	b.ops = append(b.ops, batchOp{kind: opMerge, path: path, fields: fields})
	return b
}

// MergeIf adds a guarded field-level update: the whole batch fails with
// ErrPreconditionFailed unless the document exists and field equals value.
func (b *Batch) MergeIf(path string, fields map[string]any, field string, value any) *Batch {
	b.ops = append(b.ops, batchOp{
		kind: opMerge, path: path, fields: fields,
		guard: true, guardKey: field, guardVal: value,
	})
	return b
}

// Delete removes a document.
func (b *Batch) Delete(path string) *Batch {
	b.ops = append(b.ops, batchOp{kind: opDelete, path: path})
	return b
}

// Len reports the number of queued operations.
func (b *Batch) Len() int {
	return len(b.ops)
}

// CollectionOf returns the collection path a document belongs to.
func CollectionOf(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[:i]
	}
	return ""
}
