package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragserve/ragserve/internal/log"
)

func newTestService(t *testing.T, dir string, opts Options) *Service {
	t.Helper()
	ix := newTestIndex(t, dir)
	require.NoError(t, ix.Build(context.Background()))
	return NewService(ix, opts, log.NewNop())
}

func TestGetContextQAChunkIsRawText(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "faq.jsonl", `{"question":"What is Go?","answer":"A programming language."}`)

	svc := newTestService(t, dir, Options{TopK: 1})

	got, err := svc.GetContext(context.Background(), "What is Go?")
	require.NoError(t, err)
	assert.Equal(t, "Question: What is Go?\nAnswer: A programming language.", got)
}

func TestGetContextTextChunkCarriesSource(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "guide.txt", "Channels orchestrate; mutexes serialize.")

	svc := newTestService(t, dir, Options{TopK: 1})

	got, err := svc.GetContext(context.Background(), "channels")
	require.NoError(t, err)
	assert.Equal(t, "From guide.txt:\nChannels orchestrate; mutexes serialize.", got)
}

func TestGetContextJoinsWithSeparator(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "faq.jsonl", strings.Join([]string{
		`{"question":"Q1","answer":"A1"}`,
		`{"question":"Q2","answer":"A2"}`,
	}, "\n"))

	svc := newTestService(t, dir, Options{TopK: 2})

	got, err := svc.GetContext(context.Background(), "Q1")
	require.NoError(t, err)
	parts := strings.Split(got, contextSeparator)
	assert.Len(t, parts, 2)
}

func TestGetContextEmptyIndex(t *testing.T) {
	svc := newTestService(t, t.TempDir(), Options{TopK: 5})

	got, err := svc.GetContext(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchMMRLambdaOneMatchesSimilarity(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "notes.txt",
		"Distributed systems fail in novel ways. Networks partition without warning. "+
			"Clocks drift between nodes. Retries amplify load during incidents. "+
			"Timeouts mask the difference between slow and dead. "+
			"Idempotency keys make retries safe. Backpressure protects downstream services.")
	writeTestFile(t, dir, "faq.jsonl", strings.Join([]string{
		`{"question":"Why do distributed systems fail?","answer":"Partial failure."}`,
		`{"question":"What color is the sky?","answer":"Blue."}`,
	}, "\n"))

	svc := newTestService(t, dir, Options{TopK: 3, MMRFetchK: 6, MMRLambda: 0.5})

	bySimilarity, err := svc.SearchSimilarity(context.Background(), "distributed systems")
	require.NoError(t, err)

	one := 1.0
	byMMR, err := svc.SearchMMR(context.Background(), "distributed systems", &one)
	require.NoError(t, err)

	assert.Equal(t, resultIDs(bySimilarity), resultIDs(byMMR))
}

func TestSearchUsesConfiguredStrategy(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "faq.jsonl", strings.Join([]string{
		`{"question":"Q1","answer":"A1"}`,
		`{"question":"Q2","answer":"A2"}`,
		`{"question":"Q3","answer":"A3"}`,
	}, "\n"))

	mmr := newTestService(t, dir, Options{TopK: 2, UseMMR: true, MMRFetchK: 3, MMRLambda: 0.5})
	results, err := mmr.Search(context.Background(), "Q1")
	require.NoError(t, err)
	assert.Len(t, results, 2)

	plain := newTestService(t, dir, Options{TopK: 2})
	results, err = plain.Search(context.Background(), "Q1")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchMMRFetchKBelowTopK(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "faq.jsonl", strings.Join([]string{
		`{"question":"Q1","answer":"A1"}`,
		`{"question":"Q2","answer":"A2"}`,
		`{"question":"Q3","answer":"A3"}`,
	}, "\n"))

	// A fetch pool smaller than top_k must not shrink the result set.
	svc := newTestService(t, dir, Options{TopK: 3, UseMMR: true, MMRFetchK: 1, MMRLambda: 0.5})

	results, err := svc.Search(context.Background(), "Q1")
	require.NoError(t, err)
	assert.Len(t, results, 3)
}
