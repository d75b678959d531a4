package blob

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hupe1980/agentmem/core"
)

func TestAggregatorReader_FastPath(t *testing.T) {
	ctx := context.Background()
	canonical := NewInMemoryStore()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/blobs/blob-123" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("from aggregator"))
	}))
	defer server.Close()

	reader := NewAggregatorReader(canonical, server.URL)

	data, err := reader.Read(ctx, "blob-123")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(data, []byte("from aggregator")) {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestAggregatorReader_FallbackOnError(t *testing.T) {
	ctx := context.Background()
	canonical := NewInMemoryStore()

	ref, err := canonical.Write(ctx, []byte("canonical copy"), core.WriteOptions{})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	reader := NewAggregatorReader(canonical, server.URL)

	data, err := reader.Read(ctx, ref)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(data, []byte("canonical copy")) {
		t.Fatalf("expected canonical fallback, got %q", data)
	}
}

func TestAggregatorReader_FallbackOnTimeout(t *testing.T) {
	ctx := context.Background()
	canonical := NewInMemoryStore()

	ref, err := canonical.Write(ctx, []byte("canonical copy"), core.WriteOptions{})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	reader := NewAggregatorReader(canonical, server.URL, func(o *AggregatorOptions) {
		o.Timeout = 50 * time.Millisecond
	})

	start := time.Now()
	data, err := reader.Read(ctx, ref)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(data, []byte("canonical copy")) {
		t.Fatalf("expected canonical fallback, got %q", data)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("fallback took too long: %v", elapsed)
	}
}
