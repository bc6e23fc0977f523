// Package orchestrator is the stateless entry point for running jobs.
// Each invocation loads a fresh configuration snapshot, validates the
// job dependency graph, resolves secrets up front, and hands a plan to
// the execution engine. Nothing persists between invocations; the
// loaded snapshot is the only state a run sees.
package orchestrator
