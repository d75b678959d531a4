// Package retrieval implements the persistent document + vector store behind
// an agent's semantic memory. Every document is embedded on insert and scored
// by cosine similarity on search (linear scan, no index). The full store is
// rewritten to a single file on every mutation; there is no compaction or
// incremental append.
//
// Duplicate prevention here is content-level: an insert is aborted when an
// existing document scores at or above the duplicate threshold. Reference
// level dedup (skipping a fetch for an already ingested blob) lives in the
// ingest package; the two notions are independent and can disagree.
package retrieval
