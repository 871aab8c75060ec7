package rating

import (
	"strings"
	"testing"
)

func TestLoad_ParsesHostRatingPairs(t *testing.T) {
	input := "# comment\nexample.com 1.5\n\nOther.com 0.8\n"
	ratings, err := Load(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ratings["example.com"] != 1.5 {
		t.Fatalf("expected example.com=1.5, got %v", ratings["example.com"])
	}
	if ratings["other.com"] != 0.8 {
		t.Fatalf("expected lowercased host lookup, got %v", ratings)
	}
}

func TestLoad_RejectsMalformedLine(t *testing.T) {
	if _, err := Load(strings.NewReader("example.com not-a-number\n")); err == nil {
		t.Fatalf("expected an error for a malformed rating line")
	}
}

func TestFor_DefaultsToOneForUnknownHost(t *testing.T) {
	ratings := map[string]float64{"known.com": 2.0}
	if v := For(ratings, "unknown.com"); v != 1.0 {
		t.Fatalf("expected default rating 1.0, got %v", v)
	}
	if v := For(ratings, "known.com"); v != 2.0 {
		t.Fatalf("expected configured rating 2.0, got %v", v)
	}
	if v := For(nil, "anything.com"); v != 1.0 {
		t.Fatalf("expected nil table to default to 1.0, got %v", v)
	}
}
