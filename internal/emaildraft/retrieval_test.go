package emaildraft

import (
	"context"
	"testing"

	"github.com/haasonsaas/nexus/internal/rag/store"
	"github.com/haasonsaas/nexus/pkg/models"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}
func (fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	return out, nil
}
func (fakeEmbedder) Name() string      { return "fake" }
func (fakeEmbedder) Dimension() int    { return 2 }
func (fakeEmbedder) MaxBatchSize() int { return 10 }

type fakeStore struct {
	results []*models.DocumentSearchResult
}

func (s *fakeStore) AddDocument(ctx context.Context, doc *models.Document, chunks []*models.DocumentChunk) error {
	return nil
}
func (s *fakeStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	return nil, nil
}
func (s *fakeStore) ListDocuments(ctx context.Context, opts *store.ListOptions) ([]*models.Document, error) {
	return nil, nil
}
func (s *fakeStore) DeleteDocument(ctx context.Context, id string) error { return nil }
func (s *fakeStore) GetChunk(ctx context.Context, id string) (*models.DocumentChunk, error) {
	return nil, nil
}
func (s *fakeStore) GetChunksByDocument(ctx context.Context, documentID string) ([]*models.DocumentChunk, error) {
	return nil, nil
}
func (s *fakeStore) Search(ctx context.Context, req *models.DocumentSearchRequest, embedding []float32) (*models.DocumentSearchResponse, error) {
	return &models.DocumentSearchResponse{Results: s.results}, nil
}
func (s *fakeStore) UpdateChunkEmbeddings(ctx context.Context, embeddings map[string][]float32) error {
	return nil
}
func (s *fakeStore) Stats(ctx context.Context) (*store.StoreStats, error) { return nil, nil }
func (s *fakeStore) Close() error                                        { return nil }

func TestRetrieverSimilarExamples(t *testing.T) {
	store := &fakeStore{results: []*models.DocumentSearchResult{
		{Chunk: &models.DocumentChunk{Content: "Thanks for reaching out, here's our return policy."}},
	}}
	r := NewRetriever(store, fakeEmbedder{})
	examples, err := r.SimilarExamples(context.Background(), "acme", "what is your return policy", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(examples) != 1 || examples[0] != "Thanks for reaching out, here's our return policy." {
		t.Fatalf("expected one example returned, got %v", examples)
	}
}

func TestRetrieverSimilarPairsUsesReplyMetadata(t *testing.T) {
	store := &fakeStore{results: []*models.DocumentSearchResult{
		{Chunk: &models.DocumentChunk{
			Content:  "Can I get a refund?",
			Metadata: models.ChunkMetadata{Extra: map[string]any{"reply": "Absolutely, here's how to start a refund."}},
		}},
		{Chunk: &models.DocumentChunk{Content: "no reply attached, should be skipped"}},
	}}
	r := NewRetriever(store, fakeEmbedder{})
	pairs, err := r.SimilarPairs(context.Background(), "acme", "refund request", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected only the chunk with a reply to produce a pair, got %d", len(pairs))
	}
	if pairs[0].Reply != "Absolutely, here's how to start a refund." {
		t.Fatalf("expected reply extracted from metadata, got %q", pairs[0].Reply)
	}
}

func TestRetrieverReturnsNilWithoutEmbedderOrStore(t *testing.T) {
	r := NewRetriever(nil, nil)
	examples, err := r.SimilarExamples(context.Background(), "acme", "query", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if examples != nil {
		t.Fatalf("expected nil examples without a store/embedder, got %v", examples)
	}
}

func TestRetrieverSelectSnippetsTagsSearch(t *testing.T) {
	store := &fakeStore{results: []*models.DocumentSearchResult{
		{Chunk: &models.DocumentChunk{Content: "Standard shipping takes 3-5 business days."}},
	}}
	r := NewRetriever(store, fakeEmbedder{})
	snippets, err := r.SelectSnippets(context.Background(), "acme", "shipping time", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snippets) != 1 {
		t.Fatalf("expected one snippet, got %v", snippets)
	}
}
