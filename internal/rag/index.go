package rag

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gofrs/flock"
	chromem "github.com/philippgille/chromem-go"

	"github.com/ragserve/ragserve/internal/log"
)

const (
	// persistDirName is the private storage directory created inside a
	// configuration's data directory.
	persistDirName = ".ragserve"

	// collectionName is the single chromem collection per index.
	collectionName = "documents"

	// sidecarName holds the serialized QA-pair list next to the vector data.
	sidecarName = "qa_pairs.json"

	// lockName is the build lock, placed outside the persisted directory so
	// a rebuild can remove and recreate the directory while holding it.
	lockName = ".ragserve.lock"
)

// maxRecordLine bounds a single line of a .jsonl record file.
const maxRecordLine = 1 << 20

// ErrNotLoaded indicates a query before Load or Build completed.
var ErrNotLoaded = errors.New("index not loaded")

// Index is a persisted vector index over the documents of one data
// directory. Build and Load are not safe to call concurrently with Query;
// the application loads all indexes at startup before serving.
type Index struct {
	dataDir      string
	chunkSize    int
	chunkOverlap int
	embed        chromem.EmbeddingFunc
	logger       log.Logger

	collection *chromem.Collection
	qaPairs    []QAPair
}

// NewIndex creates an index over dataDir. Call Load or Build before Query.
func NewIndex(dataDir string, chunkSize, chunkOverlap int, embed chromem.EmbeddingFunc, logger log.Logger) *Index {
	return &Index{
		dataDir:      dataDir,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		embed:        embed,
		logger:       logger,
	}
}

func (ix *Index) persistDir() string { return filepath.Join(ix.dataDir, persistDirName) }
func (ix *Index) sidecarPath() string {
	return filepath.Join(ix.dataDir, persistDirName, sidecarName)
}

// Load opens the persisted index if both the vector data and the QA sidecar
// exist, and builds from scratch otherwise. reindex forces a rebuild
// regardless of existing state.
func (ix *Index) Load(ctx context.Context, reindex bool) error {
	if reindex {
		return ix.Build(ctx)
	}

	if _, err := os.Stat(ix.persistDir()); err != nil {
		return ix.Build(ctx)
	}
	if _, err := os.Stat(ix.sidecarPath()); err != nil {
		return ix.Build(ctx)
	}

	db, err := chromem.NewPersistentDB(ix.persistDir(), false)
	if err != nil {
		return fmt.Errorf("opening vector database: %w", err)
	}

	collection := db.GetCollection(collectionName, ix.embed)
	if collection == nil {
		// Directory exists but holds no collection; treat as absent.
		return ix.Build(ctx)
	}

	pairs, err := readSidecar(ix.sidecarPath())
	if err != nil {
		return fmt.Errorf("reading QA sidecar: %w", err)
	}

	ix.collection = collection
	ix.qaPairs = pairs

	ix.logger.Info("index loaded",
		"data_dir", ix.dataDir,
		"chunks", collection.Count(),
		"qa_pairs", len(pairs))

	return nil
}

// Build scans the data directory and rebuilds the persisted index and QA
// sidecar from scratch. A file lock serializes builds across processes.
func (ix *Index) Build(ctx context.Context) error {
	lock := flock.New(filepath.Join(ix.dataDir, lockName))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquiring build lock: %w", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			ix.logger.Warn("releasing build lock", "error", err)
		}
	}()

	if err := os.RemoveAll(ix.persistDir()); err != nil {
		return fmt.Errorf("clearing persisted index: %w", err)
	}

	db, err := chromem.NewPersistentDB(ix.persistDir(), false)
	if err != nil {
		return fmt.Errorf("creating vector database: %w", err)
	}

	collection, err := db.CreateCollection(collectionName, nil, ix.embed)
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	docs, pairs, err := ix.scanDataDir()
	if err != nil {
		return err
	}

	// An empty directory still yields a valid (empty) persisted index.
	if len(docs) > 0 {
		if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("indexing documents: %w", err)
		}
	}

	if err := writeSidecar(ix.sidecarPath(), pairs); err != nil {
		return err
	}

	ix.collection = collection
	ix.qaPairs = pairs

	ix.logger.Info("index built",
		"data_dir", ix.dataDir,
		"chunks", len(docs),
		"qa_pairs", len(pairs))

	return nil
}

// scanDataDir reads the data directory non-recursively and produces the
// documents to index plus the QA sidecar list.
func (ix *Index) scanDataDir() ([]chromem.Document, []QAPair, error) {
	entries, err := os.ReadDir(ix.dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading data directory: %w", err)
	}

	var docs []chromem.Document
	var pairs []QAPair

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(ix.dataDir, name)

		switch strings.ToLower(filepath.Ext(name)) {
		case ".txt", ".md":
			chunked, err := ix.chunkTextFile(path, name)
			if err != nil {
				return nil, nil, err
			}
			docs = append(docs, chunked...)

		case ".jsonl":
			qaDocs, qaPairs, err := ix.parseRecordFile(path, name)
			if err != nil {
				return nil, nil, err
			}
			docs = append(docs, qaDocs...)
			pairs = append(pairs, qaPairs...)
		}
	}

	return docs, pairs, nil
}

func (ix *Index) chunkTextFile(path, name string) ([]chromem.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	chunks := SplitText(string(data), ix.chunkSize, ix.chunkOverlap)
	docs := make([]chromem.Document, 0, len(chunks))
	for i, chunk := range chunks {
		docs = append(docs, chromem.Document{
			ID:      fmt.Sprintf("%s#%d", name, i),
			Content: chunk,
			Metadata: map[string]string{
				"type":   KindText,
				"source": name,
			},
		})
	}
	return docs, nil
}

// parseRecordFile parses one JSON object per line. Lines that fail to parse
// or lack a question or answer key are skipped, not fatal. Presence of the
// keys is what counts; empty string values are indexed as-is.
func (ix *Index) parseRecordFile(path, name string) ([]chromem.Document, []QAPair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	var docs []chromem.Document
	var pairs []QAPair

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordLine)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec struct {
			Question *string `json:"question"`
			Answer   *string `json:"answer"`
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			ix.logger.Warn("skipping malformed record line",
				"source", name, "line", lineNo, "error", err)
			continue
		}
		if rec.Question == nil || rec.Answer == nil {
			ix.logger.Warn("skipping incomplete record line",
				"source", name, "line", lineNo)
			continue
		}
		pair := QAPair{Question: *rec.Question, Answer: *rec.Answer}

		docs = append(docs, chromem.Document{
			ID:      fmt.Sprintf("%s#qa%d", name, lineNo),
			Content: pair.Render(),
			Metadata: map[string]string{
				"type":     KindQA,
				"source":   name,
				"question": pair.Question,
			},
		})
		pairs = append(pairs, pair)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scanning %s: %w", name, err)
	}

	return docs, pairs, nil
}

// Query returns the n nearest chunks to the query. n is clamped to the
// collection size because chromem rejects nResults above the document count.
// An empty index returns no results and no error.
func (ix *Index) Query(ctx context.Context, query string, n int) ([]Result, error) {
	if ix.collection == nil {
		return nil, ErrNotLoaded
	}

	count := ix.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if n > count {
		n = count
	}

	found, err := ix.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	results := make([]Result, 0, len(found))
	for _, r := range found {
		results = append(results, Result{
			Chunk: Chunk{
				ID:       r.ID,
				Content:  r.Content,
				Source:   r.Metadata["source"],
				Kind:     r.Metadata["type"],
				Question: r.Metadata["question"],
			},
			Similarity: r.Similarity,
			Embedding:  r.Embedding,
		})
	}
	return results, nil
}

// QAPairs returns the sidecar list for inspection. The returned slice must
// not be modified.
func (ix *Index) QAPairs() []QAPair {
	return ix.qaPairs
}

func readSidecar(path string) ([]QAPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pairs []QAPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}

// writeSidecar persists the QA list atomically (temp file + rename) so a
// crash mid-write never leaves a truncated sidecar next to a valid index.
func writeSidecar(path string, pairs []QAPair) error {
	if pairs == nil {
		pairs = []QAPair{}
	}
	data, err := json.MarshalIndent(pairs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling QA sidecar: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing QA sidecar: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming QA sidecar: %w", err)
	}
	return nil
}
