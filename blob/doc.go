// Package blob contains concrete core.BlobStore implementations. The store
// interface resides in the core package; depend on core.BlobStore in your
// code and select an implementation at wiring time.
//
// InMemoryStore is a content-addressed in-process store suitable for tests
// and single-process prototypes. AggregatorReader layers a fast HTTP read
// path with a bounded timeout over any canonical store.
package blob
