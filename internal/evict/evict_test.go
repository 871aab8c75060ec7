package evict

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/0xfaulty/tgcontest/internal/model"
)

func TestPartition_SplitsByStaleness(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []*model.Document{
		{FileID: "live", FetchTime: now, TTL: time.Hour},
		{FileID: "stale", FetchTime: now.Add(-2 * time.Hour), TTL: time.Hour},
	}

	live, stale := Partition(docs, now)
	if len(live) != 1 || live[0].FileID != "live" {
		t.Fatalf("expected one live document, got %v", live)
	}
	if len(stale) != 1 || stale[0].FileID != "stale" {
		t.Fatalf("expected one stale document, got %v", stale)
	}
}

func TestPartition_NoLossNoDuplication(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []*model.Document{
		{FileID: "a", FetchTime: now, TTL: time.Hour},
		{FileID: "b", FetchTime: now.Add(-2 * time.Hour), TTL: time.Hour},
		{FileID: "c", FetchTime: now, TTL: time.Hour},
	}
	live, stale := Partition(docs, now)
	if len(live)+len(stale) != len(docs) {
		t.Fatalf("expected every document accounted for exactly once, got live=%d stale=%d", len(live), len(stale))
	}
}

type fakeDeleter struct {
	mu      sync.Mutex
	deleted []string
	failFor map[string]bool
}

func (f *fakeDeleter) Delete(ctx context.Context, fileID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[fileID] {
		return false, context.DeadlineExceeded
	}
	f.deleted = append(f.deleted, fileID)
	return true, nil
}

func TestEvictAsync_BestEffortReportsFailures(t *testing.T) {
	deleter := &fakeDeleter{failFor: map[string]bool{"bad": true}}
	stale := []*model.Document{{FileID: "good"}, {FileID: "bad"}}

	var mu sync.Mutex
	var errored []string
	done := make(chan struct{})

	go func() {
		EvictAsync(context.Background(), deleter, stale, func(fileID string, err error) {
			mu.Lock()
			errored = append(errored, fileID)
			mu.Unlock()
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("EvictAsync did not return promptly")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		gotErr := len(errored) > 0
		mu.Unlock()
		if gotErr {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(errored) != 1 || errored[0] != "bad" {
		t.Fatalf("expected failure callback for %q, got %v", "bad", errored)
	}
}
