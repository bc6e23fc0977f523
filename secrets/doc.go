// Package secrets resolves the logical secret keys pipelines declare
// into concrete values before anything executes.
//
// Values come from a Source, normally the process environment (with
// optional .env preloading for development). Resolution is all or
// nothing: every missing required key and every value failing its
// declared pattern is collected and reported in a single aggregated
// error, so an operator fixes the whole set in one pass instead of
// replaying the run once per key.
//
// Resolved values are wrapped in Value, whose String method redacts.
// Only Reveal returns the raw secret; log and error paths never call
// it.
package secrets
