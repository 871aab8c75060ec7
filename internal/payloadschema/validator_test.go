package payloadschema

import "testing"

func TestValidateDocumentPayload_Accepts(t *testing.T) {
	raw := []byte(`{
		"url": "https://news.example.com/a",
		"title": "Example headline",
		"fetch_time": "2024-01-01T00:00:00Z",
		"ttl_seconds": 3600,
		"language": "en",
		"category": "technology"
	}`)

	payload, err := ValidateDocumentPayload(raw)
	if err != nil {
		t.Fatalf("ValidateDocumentPayload: %v", err)
	}
	if payload.URL != "https://news.example.com/a" {
		t.Fatalf("unexpected url: %q", payload.URL)
	}
}

func TestValidateDocumentPayload_RejectsMissingRequiredField(t *testing.T) {
	raw := []byte(`{"title": "no url"}`)
	if _, err := ValidateDocumentPayload(raw); err == nil {
		t.Fatalf("expected an error for a missing required field")
	}
}

func TestValidateDocumentPayload_RejectsTrailingContent(t *testing.T) {
	raw := []byte(`{"url": "https://a.com"} garbage`)
	if _, err := ValidateDocumentPayload(raw); err == nil {
		t.Fatalf("expected an error for trailing content")
	}
}

func TestValidateDocumentPayload_RejectsBadTimestamp(t *testing.T) {
	raw := []byte(`{
		"url": "https://news.example.com/a",
		"title": "Example headline",
		"fetch_time": "not-a-timestamp",
		"ttl_seconds": 3600,
		"language": "en",
		"category": "technology"
	}`)
	if _, err := ValidateDocumentPayload(raw); err == nil {
		t.Fatalf("expected an error for a malformed fetch_time")
	}
}
