// Package session caches per-agent memory sessions and keeps them in
// sync with the on-chain pointer protocol. A session bundles the agent's
// identity document, its retrieval store, and the conversation history
// recovered from the latest persisted summary.
package session
