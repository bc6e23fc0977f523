// Package graph builds and validates dependency graphs over named
// nodes. It backs two uses: the pipeline graph inside a single job and
// the job-to-job dependency graph of a snapshot.
//
// Validation is strict and happens before anything executes: a
// dependency on an undeclared node, a self dependency, or a cycle all
// fail the whole run. Cycle errors report the full cycle path so the
// offending depends_on entries can be found without bisecting YAML.
//
// All traversal orders are deterministic. Nodes are visited in sorted
// name order, so the same configuration always produces the same
// errors and the same level layout.
package graph
