package hotindex

import (
	"sync"
	"testing"
	"time"

	"github.com/0xfaulty/tgcontest/internal/model"
)

func TestHotIndex_NotReadyUntilFirstSet(t *testing.T) {
	h := New()
	if h.Ready() {
		t.Fatalf("expected a fresh HotIndex to not be ready")
	}
	if h.Get() != nil {
		t.Fatalf("expected a fresh HotIndex to have no published index")
	}

	h.Set(&model.ThreadIndex{IterTimestamp: time.Unix(1, 0)})
	if !h.Ready() {
		t.Fatalf("expected HotIndex to be ready after Set")
	}
	if h.Get().IterTimestamp.Unix() != 1 {
		t.Fatalf("unexpected published index: %+v", h.Get())
	}
}

func TestHotIndex_SetReplacesWithoutMutatingPriorReference(t *testing.T) {
	h := New()

	first := &model.ThreadIndex{IterTimestamp: time.Unix(1, 0)}
	h.Set(first)
	held := h.Get()

	second := &model.ThreadIndex{IterTimestamp: time.Unix(2, 0)}
	h.Set(second)

	if held.IterTimestamp.Unix() != 1 {
		t.Fatalf("expected a previously read reference to remain unchanged, got %v", held.IterTimestamp)
	}
	if h.Get().IterTimestamp.Unix() != 2 {
		t.Fatalf("expected Get to observe the latest Set")
	}
}

func TestHotIndex_ConcurrentSetAndGetNeverPanics(t *testing.T) {
	h := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			h.Set(&model.ThreadIndex{IterTimestamp: time.Unix(int64(n), 0)})
		}(i)
		go func() {
			defer wg.Done()
			_ = h.Get()
		}()
	}
	wg.Wait()

	if !h.Ready() {
		t.Fatalf("expected HotIndex to be ready after concurrent sets")
	}
}
