package loop

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/0xfaulty/tgcontest/internal/config"
	"github.com/0xfaulty/tgcontest/internal/hotindex"
	"github.com/0xfaulty/tgcontest/internal/model"
	"github.com/0xfaulty/tgcontest/internal/store"
)

// fakeStore is an in-memory DocumentStore/Snapshot good enough to drive a
// clustering cycle without a database.
type fakeStore struct {
	docs      map[string]*model.Document
	deleted   []string
	deleteErr error
}

func newFakeStore(docs ...*model.Document) *fakeStore {
	s := &fakeStore{docs: make(map[string]*model.Document)}
	for _, d := range docs {
		s.docs[d.FileID] = d
	}
	return s
}

func (s *fakeStore) Put(ctx context.Context, doc *model.Document) (bool, error) {
	_, existed := s.docs[doc.FileID]
	s.docs[doc.FileID] = doc
	return existed, nil
}

func (s *fakeStore) Delete(ctx context.Context, fileID string) (bool, error) {
	if s.deleteErr != nil {
		return false, s.deleteErr
	}
	_, existed := s.docs[fileID]
	delete(s.docs, fileID)
	s.deleted = append(s.deleted, fileID)
	return existed, nil
}

func (s *fakeStore) Get(ctx context.Context, fileID string) (*model.Document, bool, error) {
	d, ok := s.docs[fileID]
	return d, ok, nil
}

func (s *fakeStore) Snapshot(ctx context.Context) (store.Snapshot, error) {
	frozen := make([]*model.Document, 0, len(s.docs))
	for _, d := range s.docs {
		frozen = append(frozen, d.Clone())
	}
	return &fakeSnapshot{docs: frozen}, nil
}

type fakeSnapshot struct{ docs []*model.Document }

func (s *fakeSnapshot) Scan(ctx context.Context, visit func(*model.Document) error) error {
	for _, d := range s.docs {
		if err := visit(d); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeSnapshot) Close() error { return nil }

func testConfig() *config.Config {
	params := config.ClusteringParams{
		SmallClusterThreshold:  0.3,
		SmallClusterSize:       5,
		MediumClusterThreshold: 0.24,
		MediumClusterSize:      10,
		LargeClusterThreshold:  0.19,
		LargeClusterSize:       30,
		BatchSize:              100,
		BatchIntersectionSize:  20,
		BanThreadsFromSameSite: true,
	}
	return &config.Config{
		RebuildIntervalMs:       50,
		IterTimestampPercentile: 0.99,
		IterTimestampMode:       config.IterTimestampFromDocuments,
		RankHalfLifeHours:       6,
		RU:                      params,
		EN:                      params,
		Other:                   params,
	}
}

func unitEmbedding(dims int, hot int) model.Embedding {
	e := make(model.Embedding, dims)
	e[hot%dims] = 1
	return e
}

func newsDoc(id string, host string, fetchTime time.Time, hotDim int) *model.Document {
	return &model.Document{
		FileID:    id,
		URL:       fmt.Sprintf("https://%s/%s", host, id),
		Host:      host,
		Title:     "headline " + id,
		FetchTime: fetchTime,
		TTL:       24 * time.Hour,
		Language:  model.LanguageEN,
		Category:  model.CategoryTechnology,
		Embeddings: map[model.EmbeddingKey]model.Embedding{
			"v1": unitEmbedding(8, hotDim),
		},
	}
}

func TestRunCycle_EmptyStoreProducesReadyEmptyIndex(t *testing.T) {
	s := newFakeStore()
	hot := hotindex.New()
	l, err := New(s, hot, testConfig(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := l.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if !hot.Ready() {
		t.Fatalf("expected the index to be published even for an empty store")
	}
	idx := hot.Get()
	if len(idx.ByLanguage[model.LanguageEN]) != 0 {
		t.Fatalf("expected no threads for an empty store")
	}
	if !idx.IterTimestamp.IsZero() {
		t.Fatalf("expected a zero iterTimestamp for an empty store")
	}
}

func TestRunCycle_MergesNearDuplicatesIntoOneThread(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newFakeStore(
		newsDoc("a", "site-a.example", now, 0),
		newsDoc("b", "site-b.example", now.Add(time.Minute), 0),
	)
	hot := hotindex.New()
	l, err := New(s, hot, testConfig(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := l.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}

	threads := hot.Get().ByLanguage[model.LanguageEN]
	if len(threads) != 1 {
		t.Fatalf("expected identical embeddings from different hosts to merge into one thread, got %d", len(threads))
	}
	if len(threads[0].Documents) != 2 {
		t.Fatalf("expected the merged thread to carry both documents, got %d", len(threads[0].Documents))
	}
}

func TestRunCycle_KeepsDissimilarDocumentsSeparate(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newFakeStore(
		newsDoc("a", "site-a.example", now, 0),
		newsDoc("b", "site-b.example", now, 4),
	)
	hot := hotindex.New()
	l, err := New(s, hot, testConfig(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := l.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}

	threads := hot.Get().ByLanguage[model.LanguageEN]
	if len(threads) != 2 {
		t.Fatalf("expected orthogonal embeddings to form separate threads, got %d", len(threads))
	}
}

func TestRunCycle_EvictsStaleDocumentsBeforeClustering(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	fresh := newsDoc("fresh", "site-a.example", now, 0)
	stale := newsDoc("stale", "site-b.example", now.Add(-48*time.Hour), 0)
	stale.TTL = time.Hour

	s := newFakeStore(fresh, stale)
	hot := hotindex.New()
	l, err := New(s, hot, testConfig(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := l.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}

	threads := hot.Get().ByLanguage[model.LanguageEN]
	if len(threads) != 1 || len(threads[0].Documents) != 1 || threads[0].Documents[0].FileID != "fresh" {
		t.Fatalf("expected only the fresh document to survive clustering, got %+v", threads)
	}

	deadline := time.After(time.Second)
	for {
		s2 := s
		_, ok, _ := s2.Get(context.Background(), "stale")
		if !ok {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected stale document to eventually be evicted from the store")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestRunCycle_IterTimestampIsHighPercentileOfFetchTimes(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var docs []*model.Document
	for i := 0; i < 100; i++ {
		docs = append(docs, newsDoc(fmt.Sprintf("doc-%03d", i), fmt.Sprintf("site-%03d.example", i), base.Add(time.Duration(i)*time.Minute), i%8))
	}
	s := newFakeStore(docs...)
	hot := hotindex.New()
	cfg := testConfig()
	l, err := New(s, hot, cfg, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := l.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}

	got := hot.Get().IterTimestamp
	want := base.Add(99 * time.Minute)
	if math.Abs(got.Sub(want).Minutes()) > 1 {
		t.Fatalf("expected iterTimestamp near the 99th percentile fetch time %v, got %v", want, got)
	}
}

func TestRunCycleRecovered_PanicDoesNotReplaceIndex(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newFakeStore(newsDoc("a", "site-a.example", now, 0))
	hot := hotindex.New()
	l, err := New(s, hot, testConfig(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	published := &model.ThreadIndex{IterTimestamp: now}
	hot.Set(published)

	// Force a panic inside runCycle: a nil store panics on the first
	// method call, standing in for any unexpected runtime failure.
	l.store = nil

	l.runCycleRecovered(context.Background())

	if hot.Get() != published {
		t.Fatalf("expected a panicking cycle to leave the previously published index untouched")
	}
}
