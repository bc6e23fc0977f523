// Package resilience provides the retry and concurrency-isolation
// primitives used around pipeline execution.
//
// Retry runs a function up to a configured number of attempts with an
// optional backoff between them. Unlike general-purpose retry helpers
// it applies no hidden defaults: a zero backoff really means retrying
// immediately, because the delay between attempts is an operator-facing
// setting taken verbatim from job configuration.
//
// Bulkhead caps concurrent calls into a shared collaborator, such as a
// warehouse that tolerates only a few parallel loads.
package resilience
