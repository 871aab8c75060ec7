package thread

import (
	"testing"
	"time"

	"github.com/0xfaulty/tgcontest/internal/model"
)

func doc(fileID, host string, category model.Category, fetchTime time.Time) *model.Document {
	return &model.Document{
		FileID:    fileID,
		URL:       "https://" + host + "/" + fileID,
		Host:      host,
		Title:     "title-" + fileID,
		Language:  model.LanguageEN,
		Category:  category,
		FetchTime: fetchTime,
	}
}

func TestBuild_SameSiteDedupKeepsEarliestDocument(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []*model.Document{
		doc("a", "example.com", model.CategorySociety, base),
		doc("b", "example.com", model.CategorySociety, base.Add(time.Minute)),
	}
	threads := Build(docs, [][]int{{0, 1}}, Params{BanThreadsFromSameSite: true}, nil)
	if len(threads) != 1 {
		t.Fatalf("expected one thread, got %d", len(threads))
	}
	if len(threads[0].Documents) != 1 {
		t.Fatalf("expected same-site dedup to leave one document, got %d", len(threads[0].Documents))
	}
	if threads[0].Documents[0].FileID != "a" {
		t.Fatalf("expected earliest fetchTime to win, got %s", threads[0].Documents[0].FileID)
	}
}

func TestBuild_NoSameHostPairsWhenBanEnabled(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []*model.Document{
		doc("a", "site-a.com", model.CategorySociety, base),
		doc("b", "site-a.com", model.CategorySociety, base.Add(time.Minute)),
		doc("c", "site-b.com", model.CategorySociety, base.Add(2*time.Minute)),
	}
	threads := Build(docs, [][]int{{0, 1, 2}}, Params{BanThreadsFromSameSite: true}, nil)
	if len(threads) != 1 {
		t.Fatalf("expected one thread, got %d", len(threads))
	}
	seen := map[string]bool{}
	for _, d := range threads[0].Documents {
		if seen[d.Host] {
			t.Fatalf("found two documents from host %s in the same thread", d.Host)
		}
		seen[d.Host] = true
	}
}

func TestBuild_SortedByBestTimeAscending(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []*model.Document{
		doc("late", "a.com", model.CategorySociety, base.Add(time.Hour)),
		doc("early", "b.com", model.CategorySociety, base),
	}
	threads := Build(docs, [][]int{{0}, {1}}, Params{}, nil)
	if len(threads) != 2 {
		t.Fatalf("expected two threads, got %d", len(threads))
	}
	if !threads[0].BestTime.Before(threads[1].BestTime) {
		t.Fatalf("expected ascending bestTime order, got %v then %v", threads[0].BestTime, threads[1].BestTime)
	}
}

func TestBuild_TitleElectionPrefersHigherRating(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []*model.Document{
		doc("low", "low-rated.com", model.CategorySociety, base),
		doc("high", "high-rated.com", model.CategorySociety, base.Add(time.Minute)),
	}
	rating := map[string]float64{"low-rated.com": 0.5, "high-rated.com": 2.0}
	threads := Build(docs, [][]int{{0, 1}}, Params{}, rating)
	if len(threads) != 1 {
		t.Fatalf("expected one thread, got %d", len(threads))
	}
	if threads[0].Title != "title-high" {
		t.Fatalf("expected higher-rated host's title to win, got %q", threads[0].Title)
	}
}

func TestBuild_CategoryMajorityVoteIgnoresAbstentions(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []*model.Document{
		doc("a", "a.com", model.CategoryNotNews, base),
		doc("b", "b.com", model.CategoryUndefined, base),
		doc("c", "c.com", model.CategoryTechnology, base),
	}
	threads := Build(docs, [][]int{{0, 1, 2}}, Params{}, nil)
	if len(threads) != 1 {
		t.Fatalf("expected one thread, got %d", len(threads))
	}
	if threads[0].Category != model.CategoryTechnology {
		t.Fatalf("expected technology to win despite abstentions, got %v", threads[0].Category)
	}
}

func TestBuild_BestTimeUsesMaxWhenTimestampMoving(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []*model.Document{
		doc("a", "a.com", model.CategorySociety, base),
		doc("b", "b.com", model.CategorySociety, base.Add(time.Hour)),
	}
	threads := Build(docs, [][]int{{0, 1}}, Params{UseTimestampMoving: true}, nil)
	if len(threads) != 1 {
		t.Fatalf("expected one thread, got %d", len(threads))
	}
	if !threads[0].BestTime.Equal(base.Add(time.Hour)) {
		t.Fatalf("expected bestTime to be the max fetchTime, got %v", threads[0].BestTime)
	}
}
