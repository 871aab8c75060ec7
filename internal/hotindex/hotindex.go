// Package hotindex publishes a read-only ThreadIndex snapshot that query
// handlers consult without ever blocking the clustering loop, and without
// the clustering loop ever blocking on a reader.
package hotindex

import (
	"sync/atomic"

	"github.com/0xfaulty/tgcontest/internal/model"
)

// HotIndex is a single-slot, swap-based holder for the current
// ThreadIndex. Readers call Get and receive their own reference to the
// index that was live at the time of the call; a subsequent Set never
// mutates that reference, so a reader's view is always internally
// consistent for the lifetime of one request.
type HotIndex struct {
	slot atomic.Pointer[model.ThreadIndex]
}

// New returns an empty, not-yet-ready HotIndex.
func New() *HotIndex {
	return &HotIndex{}
}

// Set atomically publishes a newly computed index, replacing whatever was
// there before. It never blocks a concurrent Get.
func (h *HotIndex) Set(idx *model.ThreadIndex) {
	h.slot.Store(idx)
}

// Get returns the currently published index, or nil if no cycle has
// completed successfully yet.
func (h *HotIndex) Get() *model.ThreadIndex {
	return h.slot.Load()
}

// Ready reports whether at least one clustering cycle has published an
// index. QueryFrontend returns 503 until this is true.
func (h *HotIndex) Ready() bool {
	return h.slot.Load() != nil
}
