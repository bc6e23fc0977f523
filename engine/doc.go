// Package engine executes a job plan wave by wave.
//
// Waves are strict barriers: every pipeline dispatched in a wave
// reaches a terminal state before the next wave starts. Within a wave,
// pipelines run concurrently up to the job's max_parallelism. Each
// dispatch goes through the configured Runner with the job's retry
// policy applied around it; transient failures retry with backoff,
// permanent ones fail immediately.
//
// The engine never crashes a run on pipeline failure. Failures are
// contained to that pipeline's outcome and propagate to dependents as
// skips. The caller always receives a complete JobResult, even when
// everything failed. Only one piece of state is shared across
// concurrent pipelines: the mutex-guarded outcome collector.
//
// Cancellation stops dispatching new pipelines; in-flight attempts
// finish on their own. The job SLA is a wall clock checked before each
// wave; once breached, remaining pipelines are marked skipped with an
// SLAExceeded error and the run winds down.
package engine
