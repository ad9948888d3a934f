package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragserve/ragserve/internal/config"
	"github.com/ragserve/ragserve/internal/llm"
	"github.com/ragserve/ragserve/internal/log"
)

// hashEmbedder is a deterministic offline ai.Embedder for wiring tests.
type hashEmbedder struct{}

func (hashEmbedder) Name() string { return "test-embedder" }

func (hashEmbedder) Register(_ api.Registry) {}

func (hashEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	embeddings := make([]*ai.Embedding, len(req.Input))
	for i, doc := range req.Input {
		v := make([]float32, 16)
		for _, part := range doc.Content {
			for j, r := range part.Text {
				v[(j+int(r))%16] += float32(r%13) + 1
			}
		}
		embeddings[i] = &ai.Embedding{Embedding: v}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	return req.Prompt, nil
}

func registryTestConfig(t *testing.T) *config.Config {
	t.Helper()

	supportDir := t.TempDir()
	docsDir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(supportDir, "faq.jsonl"),
		[]byte(`{"question":"How do refunds work?","answer":"Within 30 days."}`),
		0o644))
	require.NoError(t, os.WriteFile(
		filepath.Join(docsDir, "guide.txt"),
		[]byte("Install the binary and run it."),
		0o644))

	prompt := config.PromptSpec{
		System:       "Answer using the context.",
		UserTemplate: "{context}\n\n{question}",
		Model:        "answer",
	}
	overlap := 20

	return &config.Config{
		Provider: config.ProviderGemini,
		Models:   map[string]config.ModelSpec{"answer": {Name: "gemini-2.5-flash"}},
		Configurations: map[string]config.Entry{
			"support": {
				DataDir: supportDir,
				Retrieval: config.RetrievalSpec{
					ChunkSize: 200, ChunkOverlap: &overlap, TopK: 1, MMRFetchK: 3,
				},
				Pipeline: config.PipelineSpec{Main: prompt, MaxRetries: 2},
			},
			"docs": {
				DataDir: docsDir,
				Retrieval: config.RetrievalSpec{
					ChunkSize: 200, ChunkOverlap: &overlap, TopK: 1, UseMMR: true, MMRFetchK: 3,
				},
				Pipeline: config.PipelineSpec{Main: prompt, MaxRetries: 2},
			},
		},
	}
}

func TestProvideRegistry(t *testing.T) {
	cfg := registryTestConfig(t)

	reg, err := provideRegistry(context.Background(), cfg, hashEmbedder{}, echoCompleter{}, log.NewNop(), false)
	require.NoError(t, err)

	// Registered in sorted name order.
	assert.Equal(t, []string{"docs", "support"}, reg.Names())

	entry, err := reg.Entry("support")
	require.NoError(t, err)

	got, err := entry.Retrieval.GetContext(context.Background(), "refunds")
	require.NoError(t, err)
	assert.Equal(t, "Question: How do refunds work?\nAnswer: Within 30 days.", got)

	// End to end through the echo pipeline: the rendered main prompt comes
	// back, proving context and question both flow into the template.
	answer, err := entry.Pipeline.Run(context.Background(),
		[]llm.Message{{Role: llm.RoleUser, Content: "How do refunds work?"}}, got)
	require.NoError(t, err)
	assert.Contains(t, answer, "Within 30 days.")
	assert.Contains(t, answer, "How do refunds work?")
}

func TestProvideRegistryReindex(t *testing.T) {
	cfg := registryTestConfig(t)

	_, err := provideRegistry(context.Background(), cfg, hashEmbedder{}, echoCompleter{}, log.NewNop(), false)
	require.NoError(t, err)

	// Loading again with reindex rebuilds from source without error.
	reg, err := provideRegistry(context.Background(), cfg, hashEmbedder{}, echoCompleter{}, log.NewNop(), true)
	require.NoError(t, err)
	assert.Len(t, reg.Names(), 2)
}
