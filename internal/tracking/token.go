package tracking

import (
	"context"
	"sync"
)

// itemKey identifies one stock item within a recorder.
type itemKey struct {
	productID   string
	variationID string
}

func makeKey(productID string, variationID *string) itemKey {
	k := itemKey{productID: productID}
	if variationID != nil {
		k.variationID = *variationID
	}
	return k
}

// Recorder remembers which stock items have already had their current
// mutation journaled, so a subsequent full-record save in the same call
// context does not journal a second time. Scoped to one request or one
// consumed message, never shared across calls.
type Recorder struct {
	mu   sync.Mutex
	seen map[itemKey]struct{}
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{seen: make(map[itemKey]struct{})}
}

func (r *Recorder) mark(k itemKey) {
	r.mu.Lock()
	r.seen[k] = struct{}{}
	r.mu.Unlock()
}

func (r *Recorder) contains(k itemKey) bool {
	r.mu.Lock()
	_, ok := r.seen[k]
	r.mu.Unlock()
	return ok
}

type recorderCtxKey struct{}

// WithRecorder attaches a fresh recorder to the context. Request and
// consumer entry points call this once; everything downstream shares it.
func WithRecorder(ctx context.Context) context.Context {
	if _, ok := ctx.Value(recorderCtxKey{}).(*Recorder); ok {
		return ctx
	}
	return context.WithValue(ctx, recorderCtxKey{}, NewRecorder())
}

// MarkRecorded notes that the current mutation of the given item has been
// journaled. No-op when the context carries no recorder.
func MarkRecorded(ctx context.Context, productID string, variationID *string) {
	if r, ok := ctx.Value(recorderCtxKey{}).(*Recorder); ok {
		r.mark(makeKey(productID, variationID))
	}
}

// IsRecorded reports whether the current mutation of the given item has
// already been journaled in this call context.
func IsRecorded(ctx context.Context, productID string, variationID *string) bool {
	r, ok := ctx.Value(recorderCtxKey{}).(*Recorder)
	return ok && r.contains(makeKey(productID, variationID))
}
