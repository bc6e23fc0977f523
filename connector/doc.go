// Package connector implements the closed set of source and destination
// kinds a pipeline can move data between, plus the LocalRunner that pairs
// them into a runnable pipeline.
//
// Connector kinds are resolved once from the pipeline spec; an unknown
// kind is a configuration error, never a runtime dispatch failure. Sources
// stream records in batches, destinations load them, and the runner
// enforces per-pipeline timeouts and bounds concurrent loads per
// destination.
package connector
