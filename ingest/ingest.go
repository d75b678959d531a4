// Package ingest pulls external blob content into a retrieval store with
// provenance tagging and reference-level dedup. A blob whose reference is
// already present in the store is never fetched again, independently of the
// store's own content-similarity duplicate prevention.
package ingest

import (
	"context"
	"encoding/base64"
	"fmt"
	"unicode/utf8"

	"github.com/hupe1980/agentmem/core"
	"github.com/hupe1980/agentmem/logging"
	"github.com/hupe1980/agentmem/retrieval"
)

// Options configure a single ingestion call.
type Options struct {
	// Metadata is merged into the stored document's metadata before the
	// source and provenance fields are applied.
	Metadata map[string]any
	// PreventDuplicates / DuplicateThreshold pass through to AddDocument.
	PreventDuplicates  bool
	DuplicateThreshold float64
}

// Result records the per-reference outcome of a batch ingestion. DocumentID
// is empty when the blob was skipped (already ingested, similarity duplicate
// or empty content) or when Error is set.
type Result struct {
	Ref        string `json:"ref"`
	DocumentID string `json:"documentId,omitempty"`
	Error      string `json:"error,omitempty"`
}

// AdapterOptions configure an Adapter.
type AdapterOptions struct {
	Logger logging.Logger
}

// Adapter ingests external objects into one retrieval store.
type Adapter struct {
	store  *retrieval.Store
	logger logging.Logger
}

// NewAdapter creates an adapter writing into store.
func NewAdapter(store *retrieval.Store, optFns ...func(o *AdapterOptions)) *Adapter {
	opts := AdapterOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Adapter{store: store, logger: logging.OrNoOp(opts.Logger)}
}

func resolveOptions(optFns []func(o *Options)) Options {
	opts := Options{
		PreventDuplicates:  true,
		DuplicateThreshold: retrieval.DefaultDuplicateThreshold,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

func (a *Adapter) addDocument(ctx context.Context, content string, metadata map[string]any, opts Options) (string, error) {
	return a.store.AddDocument(ctx, content, metadata, func(o *retrieval.AddOptions) {
		o.PreventDuplicates = opts.PreventDuplicates
		o.DuplicateThreshold = opts.DuplicateThreshold
	})
}

// HasBlob reports whether any stored document was ingested from ref.
// Documents are held in memory after load, so the linear scan is cheap for
// small to medium stores.
func (a *Adapter) HasBlob(ctx context.Context, ref string) (bool, error) {
	docs, err := a.store.Documents(ctx)
	if err != nil {
		return false, err
	}
	for _, doc := range docs {
		if p, ok := doc.Provenance(); ok && p.Ref == ref {
			return true, nil
		}
	}
	return false, nil
}

// IngestBlob fetches ref from client and stores it as a document tagged with
// blob provenance. When the reference was already ingested no fetch occurs
// and "" is returned.
func (a *Adapter) IngestBlob(ctx context.Context, client core.BlobStore, ref string, optFns ...func(o *Options)) (string, error) {
	exists, err := a.HasBlob(ctx, ref)
	if err != nil {
		return "", err
	}
	if exists {
		a.logger.Debug("blob already ingested, skipping download", "ref", ref)
		return "", nil
	}

	raw, err := client.Read(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("read blob %s: %w", ref, err)
	}

	opts := resolveOptions(optFns)
	metadata := blobMetadata(opts.Metadata, nil)
	metadata = core.WithProvenance(metadata, core.Provenance{Ref: ref, Kind: core.SourceKindBlob})
	return a.addDocument(ctx, DecodeText(raw), metadata, opts)
}

// IngestMany ingests refs sequentially, tolerating partial failure: the
// returned slice has one entry per input reference and a failed fetch never
// aborts the batch.
func (a *Adapter) IngestMany(ctx context.Context, client core.BlobStore, refs []string, optFns ...func(o *Options)) []Result {
	results := make([]Result, 0, len(refs))
	for _, ref := range refs {
		documentID, err := a.IngestBlob(ctx, client, ref, optFns...)
		if err != nil {
			a.logger.Warn("blob ingestion failed", "ref", ref, "error", err)
			results = append(results, Result{Ref: ref, Error: err.Error()})
			continue
		}
		results = append(results, Result{Ref: ref, DocumentID: documentID})
	}
	return results
}

// IngestContainerPart reads one named part of a container and stores its
// text, identifier and tags as a document tagged with containerPatch
// provenance.
func (a *Adapter) IngestContainerPart(ctx context.Context, client core.BlobStore, containerRef, partID string, optFns ...func(o *Options)) (string, error) {
	part, err := client.ReadPart(ctx, partID)
	if err != nil {
		return "", fmt.Errorf("read container part %s: %w", partID, err)
	}

	opts := resolveOptions(optFns)
	extras := map[string]any{}
	if containerRef != "" {
		extras["container"] = containerRef
	}
	if part.Identifier != "" {
		extras["identifier"] = part.Identifier
	}
	for k, v := range part.Tags {
		extras["tag:"+k] = v
	}
	metadata := blobMetadata(opts.Metadata, extras)
	metadata = core.WithProvenance(metadata, core.Provenance{Ref: partID, Kind: core.SourceKindContainerPatch})
	return a.addDocument(ctx, DecodeText(part.Contents), metadata, opts)
}

// DecodeText interprets raw bytes as UTF-8 text, falling back to a base64
// rendering when the bytes are not valid text.
func DecodeText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func blobMetadata(base map[string]any, extras map[string]any) map[string]any {
	resolved := make(map[string]any, len(base)+len(extras)+1)
	for k, v := range base {
		resolved[k] = v
	}
	for k, v := range extras {
		resolved[k] = v
	}
	if _, ok := resolved["source"].(string); !ok {
		resolved["source"] = "blob-store"
	}
	return resolved
}
