// Package plan turns a validated job and its pipeline graph into an
// ordered execution plan.
//
// A plan is a sequence of waves. Waves are strict barriers: wave N+1
// starts only after every pipeline in wave N has finished. How
// pipelines fall into waves depends on the job's execution mode:
//
//	sequential  one pipeline per wave, by (order, name)
//	parallel    a single wave holding every pipeline
//	dag         one wave per dependency level
//
// Disabled pipelines stay in the plan, flagged, so that downstream
// dependencies still see them complete (as skips) in the right wave.
// Planning is deterministic: the same job always yields the same plan.
package plan
