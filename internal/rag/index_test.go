package rag

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	chromem "github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragserve/ragserve/internal/log"
)

// stubEmbedding is a deterministic offline embedding: a bag-of-runes
// histogram, normalized. Similar texts map to similar vectors, which is
// enough for ranking assertions without a provider.
func stubEmbedding() chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		v := make([]float32, 32)
		for i, r := range []rune(text) {
			v[(i+int(r))%32] += float32(r%29) + 1
		}

		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		if norm == 0 {
			v[0] = 1
			norm = 1
		}
		norm = math.Sqrt(norm)
		for i := range v {
			v[i] = float32(float64(v[i]) / norm)
		}
		return v, nil
	}
}

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newTestIndex(t *testing.T, dir string) *Index {
	t.Helper()
	return NewIndex(dir, 50, 10, stubEmbedding(), log.NewNop())
}

func TestIndexBuild(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "notes.txt", strings.Repeat("gophers build reliable services. ", 10))
	writeTestFile(t, dir, "faq.jsonl", strings.Join([]string{
		`{"question":"What is the capital of France?","answer":"Paris"}`,
		`this line is not JSON at all`,
		`{"question":"Missing the answer field"}`,
		`{"question":"How many planets orbit the sun?","answer":"Eight"}`,
	}, "\n"))
	writeTestFile(t, dir, "ignored.bin", "binary noise")

	ix := newTestIndex(t, dir)
	require.NoError(t, ix.Build(context.Background()))

	// Two well-formed records survive; malformed and incomplete lines do not.
	require.Len(t, ix.QAPairs(), 2)
	assert.Equal(t, "Paris", ix.QAPairs()[0].Answer)

	// Persisted state: vector data plus the sidecar, written together.
	assert.DirExists(t, filepath.Join(dir, persistDirName))
	assert.FileExists(t, filepath.Join(dir, persistDirName, sidecarName))

	results, err := ix.Query(context.Background(), "capital of France", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.NotEmpty(t, r.Chunk.Content)
		assert.Contains(t, []string{KindText, KindQA}, r.Chunk.Kind)
	}
}

func TestIndexBuildKeepsEmptyStringRecords(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "faq.jsonl", strings.Join([]string{
		`{"question":"","answer":""}`,
		`{"question":"Q","answer":""}`,
		`{"answer":"orphaned"}`,
	}, "\n"))

	ix := newTestIndex(t, dir)
	require.NoError(t, ix.Build(context.Background()))

	// Both keys present is enough; empty string values are indexed as-is.
	// Only the record missing its question key is dropped.
	require.Len(t, ix.QAPairs(), 2)
	assert.Equal(t, QAPair{}, ix.QAPairs()[0])
	assert.Equal(t, QAPair{Question: "Q"}, ix.QAPairs()[1])
}

func TestIndexEmptyDirectory(t *testing.T) {
	dir := t.TempDir()

	ix := newTestIndex(t, dir)
	require.NoError(t, ix.Build(context.Background()))

	// An empty directory still produces a valid, loadable index.
	assert.FileExists(t, filepath.Join(dir, persistDirName, sidecarName))

	results, err := ix.Query(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndexQueryClampsToCollectionSize(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "faq.jsonl", `{"question":"Q","answer":"A"}`)

	ix := newTestIndex(t, dir)
	require.NoError(t, ix.Build(context.Background()))

	results, err := ix.Query(context.Background(), "Q", 50)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestIndexQueryBeforeLoad(t *testing.T) {
	ix := newTestIndex(t, t.TempDir())

	_, err := ix.Query(context.Background(), "q", 1)
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestIndexLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "notes.txt", strings.Repeat("consistency over availability. ", 8))
	writeTestFile(t, dir, "faq.jsonl", `{"question":"Q","answer":"A"}`)

	built := newTestIndex(t, dir)
	require.NoError(t, built.Build(context.Background()))
	wantResults, err := built.Query(context.Background(), "consistency", 4)
	require.NoError(t, err)

	loaded := newTestIndex(t, dir)
	require.NoError(t, loaded.Load(context.Background(), false))

	assert.Equal(t, built.QAPairs(), loaded.QAPairs())

	gotResults, err := loaded.Query(context.Background(), "consistency", 4)
	require.NoError(t, err)
	assert.Equal(t, resultIDs(wantResults), resultIDs(gotResults))
}

func TestIndexLoadMissingSidecarRebuilds(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "faq.jsonl", `{"question":"Q","answer":"A"}`)

	built := newTestIndex(t, dir)
	require.NoError(t, built.Build(context.Background()))
	require.NoError(t, os.Remove(filepath.Join(dir, persistDirName, sidecarName)))

	loaded := newTestIndex(t, dir)
	require.NoError(t, loaded.Load(context.Background(), false))

	// The missing sidecar forced a rebuild, restoring both halves.
	assert.Len(t, loaded.QAPairs(), 1)
	assert.FileExists(t, filepath.Join(dir, persistDirName, sidecarName))
}

func TestIndexLoadWithReindexRebuilds(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "faq.jsonl", `{"question":"Q","answer":"A"}`)

	first := newTestIndex(t, dir)
	require.NoError(t, first.Build(context.Background()))

	// The source changed after the first build; only a reindex sees it.
	writeTestFile(t, dir, "faq.jsonl", strings.Join([]string{
		`{"question":"Q","answer":"A"}`,
		`{"question":"Q2","answer":"A2"}`,
	}, "\n"))

	stale := newTestIndex(t, dir)
	require.NoError(t, stale.Load(context.Background(), false))
	assert.Len(t, stale.QAPairs(), 1)

	fresh := newTestIndex(t, dir)
	require.NoError(t, fresh.Load(context.Background(), true))
	assert.Len(t, fresh.QAPairs(), 2)
}
