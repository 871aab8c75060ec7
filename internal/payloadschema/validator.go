// Package payloadschema validates the supplemental JSON ingest payload
// (Content-Type: application/json against PUT /article/{fileId}) using
// an embedded JSON Schema compiled once, on first use.
package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed document.schema.json
var documentSchemaJSON string

// DocumentPayload is the JSON shape accepted on the supplemental ingest
// path, mirroring model.Document's persisted fields.
type DocumentPayload struct {
	URL         string               `json:"url"`
	Title       string               `json:"title"`
	PubTime     *string              `json:"pub_time,omitempty"`
	FetchTime   string               `json:"fetch_time"`
	TTLSeconds  int                  `json:"ttl_seconds"`
	Language    string               `json:"language"`
	Category    string               `json:"category"`
	Embeddings  map[string][]float64 `json:"embeddings,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateDocumentPayload strict-decodes and schema-validates raw, then
// runs semantic checks the schema can't express (well-formed timestamps).
func ValidateDocumentPayload(raw json.RawMessage) (*DocumentPayload, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var payload DocumentPayload
	if err := json.Unmarshal(normalized, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&payload); err != nil {
		return nil, err
	}

	return &payload, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("document.schema.json", strings.NewReader(documentSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("document.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}
		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}
	return value, nil
}

func validateSemantics(p *DocumentPayload) error {
	if _, err := time.Parse(time.RFC3339, strings.TrimSpace(p.FetchTime)); err != nil {
		return fmt.Errorf("fetch_time must be RFC3339: %w", err)
	}
	if p.PubTime != nil {
		if _, err := time.Parse(time.RFC3339, strings.TrimSpace(*p.PubTime)); err != nil {
			return fmt.Errorf("pub_time must be RFC3339: %w", err)
		}
	}
	return nil
}
