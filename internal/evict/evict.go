// Package evict implements the StaleEvictor collaborator: it partitions
// a document set into live and stale members as of a reference time, and
// best-effort deletes the stale ones from the backing store.
package evict

import (
	"context"
	"time"

	"github.com/0xfaulty/tgcontest/internal/model"
	"github.com/0xfaulty/tgcontest/internal/store"
)

// Deleter is the minimal capability StaleEvictor needs from a
// DocumentStore: delete by id. Kept narrow so tests don't need a full
// store.DocumentStore.
type Deleter interface {
	Delete(ctx context.Context, fileID string) (bool, error)
}

var _ Deleter = store.DocumentStore(nil)

// Partition splits docs into live and stale sets using reference time t:
// a document is stale once fetchTime + ttl < t.
func Partition(docs []*model.Document, t time.Time) (live, stale []*model.Document) {
	live = make([]*model.Document, 0, len(docs))
	stale = make([]*model.Document, 0)
	for _, doc := range docs {
		if doc.IsStale(t) {
			stale = append(stale, doc)
		} else {
			live = append(live, doc)
		}
	}
	return live, stale
}

// EvictAsync deletes every stale document from the store in the
// background and returns immediately: the clustering cycle already
// dropped these documents from its own working set, so a delete failure
// here is not fatal to the cycle. The next cycle will simply try again
// as long as the document remains stale.
func EvictAsync(ctx context.Context, deleter Deleter, stale []*model.Document, onError func(fileID string, err error)) {
	go func() {
		for _, doc := range stale {
			if _, err := deleter.Delete(ctx, doc.FileID); err != nil {
				if onError != nil {
					onError(doc.FileID, err)
				}
			}
		}
	}()
}
