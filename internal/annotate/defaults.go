package annotate

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/0xfaulty/tgcontest/internal/model"
)

// DefaultCategoryClassifier is a placeholder standing in for a trained
// category model. It always reports CategoryOther for any text that
// reaches it, which keeps downstream clustering exercised without
// asserting a model this repository does not carry.
type DefaultCategoryClassifier struct{}

func (DefaultCategoryClassifier) Classify(ctx context.Context, title, text string, lang model.Language) (model.Category, error) {
	if strings.TrimSpace(text) == "" {
		return model.CategoryUndefined, nil
	}
	return model.CategoryOther, nil
}

const defaultEmbeddingDim = 32

// DefaultEmbeddingKey names the placeholder embedding space produced by
// DefaultEmbedder, distinct from any real model's key so a real model
// can be introduced later without colliding.
const DefaultEmbeddingKey model.EmbeddingKey = "hashing-v1"

// DefaultEmbedder is a placeholder standing in for a trained embedding
// model. It produces a deterministic, unit-norm bag-of-words hash
// vector: two articles that share vocabulary land closer together than
// two that don't, which is enough to exercise the clusterer's contract
// without asserting semantic quality.
type DefaultEmbedder struct{}

func (DefaultEmbedder) Embed(ctx context.Context, title, text string, lang model.Language) (model.EmbeddingKey, model.Embedding, error) {
	vec := make(model.Embedding, defaultEmbeddingDim)
	for _, tok := range strings.Fields(strings.ToLower(title + " " + text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		idx := int(h.Sum32() % uint32(defaultEmbeddingDim))
		vec[idx] += 1
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		// No tokens hashed to any bucket; fall back to a fixed unit
		// vector so the result still satisfies Document.Validate.
		vec[0] = 1
		return DefaultEmbeddingKey, vec, nil
	}
	for i := range vec {
		vec[i] /= norm
	}
	return DefaultEmbeddingKey, vec, nil
}
