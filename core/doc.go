// Package core provides the foundational domain types and collaborator
// interfaces used by AgentMem. It defines the core abstractions for:
//
//   - Documents (content + open metadata owned by a retrieval store)
//   - Chat messages and memory sources declared by agent identities
//   - BlobStore (content-addressed immutable storage with container parts)
//   - Registry (one mutable pointer per agent, transactional repoint)
//
// The package intentionally keeps implementation concerns (persistence,
// embedding backends, concrete stores) out of scope, exposing small
// interfaces to enable custom backends and extensions.
package core
