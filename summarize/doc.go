// Package summarize buffers conversation exchanges per agent and condenses
// them into persisted memory summaries, either automatically once a buffer
// grows past its threshold or explicitly at end of session.
package summarize
