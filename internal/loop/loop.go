// Package loop implements ClusteringLoop: the single background
// goroutine that snapshots the document store, evicts stale documents,
// clusters and threads what remains per language, and hot-swaps the
// published ThreadIndex, on a fixed interval.
package loop

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/0xfaulty/tgcontest/internal/annotate"
	"github.com/0xfaulty/tgcontest/internal/cluster"
	"github.com/0xfaulty/tgcontest/internal/config"
	"github.com/0xfaulty/tgcontest/internal/evict"
	"github.com/0xfaulty/tgcontest/internal/hotindex"
	"github.com/0xfaulty/tgcontest/internal/model"
	"github.com/0xfaulty/tgcontest/internal/store"
	"github.com/0xfaulty/tgcontest/internal/thread"
)

// Loop is a ClusteringLoop instance: one per process, run on its own
// goroutine for the process lifetime.
type Loop struct {
	store     store.DocumentStore
	hot       *hotindex.HotIndex
	cfg       *config.Config
	ratings   map[string]float64
	logger    zerolog.Logger
	clusterer map[model.Language]*cluster.Clusterer
}

// New builds a Loop. The per-language clusterers are built once here, at
// startup, rather than re-selected every cycle: swapping clustering
// algorithms mid-run would make consecutive cycles incomparable.
func New(docStore store.DocumentStore, hot *hotindex.HotIndex, cfg *config.Config, ratings map[string]float64, logger zerolog.Logger) (*Loop, error) {
	clusterers := make(map[model.Language]*cluster.Clusterer, 3)
	for _, lang := range []model.Language{model.LanguageRU, model.LanguageEN, model.LanguageOther} {
		params := cfg.ParamsFor(lang)
		c, err := cluster.New(cluster.AlgorithmSlink, cluster.Params{
			Thresholds: cluster.Thresholds{
				SmallSize:       params.SmallClusterSize,
				SmallThreshold:  params.SmallClusterThreshold,
				MediumSize:      params.MediumClusterSize,
				MediumThreshold: params.MediumClusterThreshold,
				LargeSize:       params.LargeClusterSize,
				LargeThreshold:  params.LargeClusterThreshold,
			},
			BatchSize:    params.BatchSize,
			BatchOverlap: params.BatchIntersectionSize,
		})
		if err != nil {
			return nil, fmt.Errorf("build clusterer for %s: %w", lang, err)
		}
		clusterers[lang] = c
	}

	return &Loop{
		store:     docStore,
		hot:       hot,
		cfg:       cfg,
		ratings:   ratings,
		logger:    logger,
		clusterer: clusterers,
	}, nil
}

// Run drives the clustering loop until ctx is canceled. A failure within
// one cycle is logged and does not replace the currently published
// index; the next cycle simply tries again.
func (l *Loop) Run(ctx context.Context) {
	interval := time.Duration(l.cfg.RebuildIntervalMs) * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		l.runCycleRecovered(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (l *Loop) runCycleRecovered(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Msg("clustering cycle panicked, index not replaced")
		}
	}()

	if err := l.runCycle(ctx); err != nil {
		l.logger.Error().Err(err).Msg("clustering cycle failed, index not replaced")
	}
}

func (l *Loop) runCycle(ctx context.Context) error {
	docs, err := l.snapshotLiveNews(ctx)
	if err != nil {
		return fmt.Errorf("snapshot documents: %w", err)
	}

	now := referenceTime(docs)
	live, stale := evict.Partition(docs, now)
	evict.EvictAsync(context.Background(), l.store, stale, func(fileID string, err error) {
		l.logger.Warn().Str("file_id", fileID).Err(err).Msg("failed to delete stale document")
	})

	byLanguage := partitionByLanguage(live)
	for lang, docsInLang := range byLanguage {
		sortForClustering(docsInLang)
		byLanguage[lang] = docsInLang
	}

	index := &model.ThreadIndex{
		ByLanguage:    make(map[model.Language][]model.Thread, len(byLanguage)),
		IterTimestamp: percentile(fetchTimes(live), l.cfg.IterTimestampPercentile),
	}

	for lang, docsInLang := range byLanguage {
		clusterer, ok := l.clusterer[lang]
		if !ok {
			continue
		}
		vectors := make([]model.Embedding, len(docsInLang))
		for i, doc := range docsInLang {
			vectors[i] = canonicalEmbedding(doc)
		}
		groups := clusterer.Cluster(vectors)

		params := l.cfg.ParamsFor(lang)
		threads := thread.Build(docsInLang, groups, thread.Params{
			BanThreadsFromSameSite: params.BanThreadsFromSameSite,
			UseTimestampMoving:     params.UseTimestampMoving,
		}, l.ratings)

		index.ByLanguage[lang] = threads
		l.logger.Debug().Str("language", lang.String()).Int("clusters", len(threads)).Msg("clustering cycle produced threads")
	}

	l.hot.Set(index)
	return nil
}

// snapshotLiveNews reads every document from a single point-in-time
// snapshot and drops anything that isn't news, so downstream code never
// has to check IsNews again.
func (l *Loop) snapshotLiveNews(ctx context.Context) ([]*model.Document, error) {
	snap, err := l.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer snap.Close()

	var docs []*model.Document
	err = snap.Scan(ctx, func(doc *model.Document) error {
		if doc.IsNews() {
			docs = append(docs, doc.Clone())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// referenceTime is the max fetchTime across all live documents, used as
// "now" for staleness so eviction stays deterministic and reproducible
// from a fixed snapshot instead of depending on wall-clock skew between
// ingest and the clustering cycle that evicts it.
func referenceTime(docs []*model.Document) time.Time {
	var max time.Time
	for _, d := range docs {
		if d.FetchTime.After(max) {
			max = d.FetchTime
		}
	}
	return max
}

func partitionByLanguage(docs []*model.Document) map[model.Language][]*model.Document {
	out := make(map[model.Language][]*model.Document)
	for _, doc := range docs {
		out[doc.Language] = append(out[doc.Language], doc)
	}
	return out
}

// sortForClustering imposes the stable, deterministic order BatchedSLINK
// relies on for reproducible batch boundaries: fetchTime, then fileId,
// then title length.
func sortForClustering(docs []*model.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].FetchTime.Equal(docs[j].FetchTime) {
			return docs[i].FetchTime.Before(docs[j].FetchTime)
		}
		if docs[i].FileID != docs[j].FileID {
			return docs[i].FileID < docs[j].FileID
		}
		return len(docs[i].Title) < len(docs[j].Title)
	})
}

// canonicalEmbedding picks one embedding space for clustering out of a
// document that may carry several. It prefers the annotator's own
// embedding key; a document ingested through the JSON path with a
// different key set falls back to the lexicographically smallest key,
// so the choice never depends on map iteration order.
func canonicalEmbedding(doc *model.Document) model.Embedding {
	if emb, ok := doc.Embeddings[annotate.DefaultEmbeddingKey]; ok {
		return emb
	}
	if len(doc.Embeddings) == 0 {
		return nil
	}
	keys := make([]string, 0, len(doc.Embeddings))
	for k := range doc.Embeddings {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return doc.Embeddings[model.EmbeddingKey(keys[0])]
}

func fetchTimes(docs []*model.Document) []time.Time {
	out := make([]time.Time, len(docs))
	for i, d := range docs {
		out[i] = d.FetchTime
	}
	return out
}

// percentile returns the p-th percentile (0, 1] of a set of timestamps,
// or the zero time if times is empty.
func percentile(times []time.Time, p float64) time.Time {
	if len(times) == 0 {
		return time.Time{}
	}
	sorted := make([]time.Time, len(times))
	copy(sorted, times)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	idx := int(p * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
