// Package errors provides unified error handling for the orchestration
// engine. It implements structured error types with error codes, retryable
// detection driving the engine's transient-vs-permanent retry policy, and
// HTTP status mapping for the webhook trigger surface.
package errors
