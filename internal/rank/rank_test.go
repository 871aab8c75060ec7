package rank

import (
	"testing"
	"time"

	"github.com/0xfaulty/tgcontest/internal/model"
)

func thread(category model.Category, bestTime time.Time, hosts ...string) model.Thread {
	docs := make([]*model.Document, len(hosts))
	for i, h := range hosts {
		docs[i] = &model.Document{FileID: h, Host: h, FetchTime: bestTime}
	}
	return model.Thread{Category: category, BestTime: bestTime, Documents: docs}
}

func TestWindow_BinarySearchByPeriod(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	threads := []model.Thread{
		thread(model.CategorySociety, base, "a.com"),
		thread(model.CategorySociety, base.Add(time.Hour), "b.com"),
		thread(model.CategorySociety, base.Add(2*time.Hour), "c.com"),
	}
	windowed := Window(threads, base.Add(time.Hour))
	if len(windowed) != 2 {
		t.Fatalf("expected 2 threads at or after period, got %d", len(windowed))
	}
}

func TestScore_WeightSumsHostDeduplicatedRatings(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	th := thread(model.CategorySociety, now, "a.com", "a.com", "b.com")
	ratings := map[string]float64{"a.com": 2.0, "b.com": 3.0}

	scored := Score(th, now, Params{HalfLife: time.Hour}, ratings)
	if scored.Weight != 5.0 {
		t.Fatalf("expected weight 5.0 (deduplicated a.com + b.com), got %v", scored.Weight)
	}
}

func TestAgePenalty_MonotoneDecreasingClamped(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	halfLife := time.Hour

	fresh := agePenalty(now, now, halfLife)
	oneHalfLife := agePenalty(now.Add(-halfLife), now, halfLife)
	twoHalfLives := agePenalty(now.Add(-2*halfLife), now, halfLife)

	if fresh != 1.0 {
		t.Fatalf("expected penalty 1.0 for zero age, got %v", fresh)
	}
	if !(oneHalfLife < fresh && oneHalfLife > twoHalfLives) {
		t.Fatalf("expected monotone decrease: fresh=%v oneHalfLife=%v twoHalfLives=%v", fresh, oneHalfLife, twoHalfLives)
	}
	if oneHalfLife < 0 || oneHalfLife > 1 || twoHalfLives < 0 || twoHalfLives > 1 {
		t.Fatalf("expected penalties clamped to [0,1], got %v and %v", oneHalfLife, twoHalfLives)
	}
	if math_abs(oneHalfLife-0.5) > 0.01 {
		t.Fatalf("expected penalty of ~0.5 after one half-life, got %v", oneHalfLife)
	}
}

func math_abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestGroupByCategory_SortsDescendingAndCombinesIntoAny(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	threads := []model.Thread{
		thread(model.CategorySociety, now, "a.com"),
		thread(model.CategoryTechnology, now, "b.com", "c.com"),
	}
	ratings := map[string]float64{"a.com": 1.0, "b.com": 1.0, "c.com": 1.0}

	grouped := GroupByCategory(threads, now, Params{HalfLife: time.Hour}, ratings)

	any := grouped[model.CategoryAny]
	if len(any) != 2 {
		t.Fatalf("expected combined ANY group to contain both threads, got %d", len(any))
	}
	if any[0].Score < any[1].Score {
		t.Fatalf("expected descending score order, got %v then %v", any[0].Score, any[1].Score)
	}

	tech := grouped[model.CategoryTechnology]
	if len(tech) != 1 {
		t.Fatalf("expected exactly one technology thread, got %d", len(tech))
	}
}

func TestGroupByCategory_TruncatesTo1000(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	threads := make([]model.Thread, 1200)
	for i := range threads {
		threads[i] = thread(model.CategorySociety, now, "a.com")
	}
	grouped := GroupByCategory(threads, now, Params{HalfLife: time.Hour}, nil)
	if len(grouped[model.CategoryAny]) != 1000 {
		t.Fatalf("expected truncation to 1000, got %d", len(grouped[model.CategoryAny]))
	}
}
