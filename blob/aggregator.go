package blob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hupe1980/agentmem/core"
	"github.com/hupe1980/agentmem/logging"
)

// AggregatorOptions configure the AggregatorReader.
type AggregatorOptions struct {
	// Timeout bounds the fast-path read. On expiry the canonical store is
	// used instead. This is the only client-side timeout in the system.
	Timeout time.Duration
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
	Logger     logging.Logger
}

// AggregatorReader serves blob reads from a public HTTP aggregator when it
// answers quickly and falls back to the canonical store on timeout or error.
// All other operations delegate to the canonical store; aggregators are
// read-only caches.
type AggregatorReader struct {
	core.BlobStore

	endpoint string
	timeout  time.Duration
	client   *http.Client
	logger   logging.Logger
}

// NewAggregatorReader wraps the canonical store with a fast read path against
// the aggregator at endpoint (e.g. "https://aggregator.example.net").
func NewAggregatorReader(canonical core.BlobStore, endpoint string, optFns ...func(o *AggregatorOptions)) *AggregatorReader {
	opts := AggregatorOptions{
		Timeout:    5 * time.Second,
		HTTPClient: http.DefaultClient,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &AggregatorReader{
		BlobStore: canonical,
		endpoint:  endpoint,
		timeout:   opts.Timeout,
		client:    opts.HTTPClient,
		logger:    logging.OrNoOp(opts.Logger),
	}
}

// Read attempts the aggregator first under the configured timeout, then the
// canonical store.
func (a *AggregatorReader) Read(ctx context.Context, ref string) ([]byte, error) {
	data, err := a.readFast(ctx, ref)
	if err == nil {
		return data, nil
	}
	a.logger.Debug("aggregator read failed, using canonical path", "ref", ref, "error", err)
	return a.BlobStore.Read(ctx, ref)
}

func (a *AggregatorReader) readFast(ctx context.Context, ref string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint+"/v1/blobs/"+ref, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("aggregator status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
