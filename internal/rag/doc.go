// Package rag implements per-configuration document retrieval.
//
// Each configuration owns one Index: a chromem-go vector database persisted
// under the configuration's data directory, plus a sidecar file holding the
// question/answer pairs loaded from line-delimited record files. The Service
// wraps an Index with the configuration's search settings and renders
// retrieved chunks into a single context string for the pipeline.
//
// Index building is serialized with a file lock so concurrent processes
// (or a reindex racing a startup) never interleave writes to the persisted
// state.
package rag
