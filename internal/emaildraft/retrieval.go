// Package emaildraft implements the email-specific draft pipeline: it
// reuses the turn-orchestration stack (classification, the policy kernel,
// guardrails) but adds RAG retrieval of similar past examples and
// tone-matched send/reply pairs, snippet templates, and a stricter
// fact-grounding gate appropriate to an asynchronous channel where there's
// no chance to immediately correct a wrong claim.
package emaildraft

import (
	"context"

	"github.com/haasonsaas/nexus/internal/rag/store"
	"github.com/haasonsaas/nexus/pkg/models"
)

// EmbeddingProvider turns text into vectors for similarity search. The
// concrete embedding backend (an external API or local model) is supplied
// by the caller; this package only depends on the interface.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
	Dimension() int
	MaxBatchSize() int
}

// Retriever finds style-reference material for an email draft: similar
// past examples and, where available, a matched send/reply pair so the
// draft can mirror tone as well as structure.
type Retriever struct {
	store    store.DocumentStore
	embedder EmbeddingProvider
}

// NewRetriever constructs a Retriever.
func NewRetriever(documentStore store.DocumentStore, embedder EmbeddingProvider) *Retriever {
	return &Retriever{store: documentStore, embedder: embedder}
}

// SimilarExamples returns the top past email bodies most similar to the
// incoming message, for style reference only.
func (r *Retriever) SimilarExamples(ctx context.Context, agentID, query string, limit int) ([]string, error) {
	results, err := r.search(ctx, agentID, query, limit)
	if err != nil {
		return nil, err
	}
	examples := make([]string, 0, len(results))
	for _, res := range results {
		if res.Chunk != nil {
			examples = append(examples, res.Chunk.Content)
		}
	}
	return examples, nil
}

// Pair is a matched inbound message and the reply that was sent to it,
// used to mirror tone on similar incoming mail.
type Pair struct {
	Inbound string
	Reply   string
}

// SimilarPairs returns send/reply pairs whose inbound message resembles
// query, for tone matching.
func (r *Retriever) SimilarPairs(ctx context.Context, agentID, query string, limit int) ([]Pair, error) {
	results, err := r.search(ctx, agentID, query, limit)
	if err != nil {
		return nil, err
	}
	pairs := make([]Pair, 0, len(results))
	for _, res := range results {
		if res.Chunk == nil {
			continue
		}
		var reply string
		if res.Chunk.Metadata.Extra != nil {
			reply, _ = res.Chunk.Metadata.Extra["reply"].(string)
		}
		if reply == "" {
			continue
		}
		pairs = append(pairs, Pair{Inbound: res.Chunk.Content, Reply: reply})
	}
	return pairs, nil
}

// SelectSnippets returns canned response snippets tagged for the business
// that are relevant to query, for the prompt's "suggested snippets"
// section.
func (r *Retriever) SelectSnippets(ctx context.Context, agentID, query string, limit int) ([]string, error) {
	results, err := r.search(ctx, agentID, query, limit, "snippet")
	if err != nil {
		return nil, err
	}
	snippets := make([]string, 0, len(results))
	for _, res := range results {
		if res.Chunk != nil {
			snippets = append(snippets, res.Chunk.Content)
		}
	}
	return snippets, nil
}

func (r *Retriever) search(ctx context.Context, agentID, query string, limit int, tags ...string) ([]*models.DocumentSearchResult, error) {
	if r.embedder == nil || r.store == nil || query == "" {
		return nil, nil
	}
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	resp, err := r.store.Search(ctx, &models.DocumentSearchRequest{
		Query:   query,
		Scope:   models.DocumentScopeAgent,
		ScopeID: agentID,
		Limit:   limit,
		Tags:    tags,
	}, embedding)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}
