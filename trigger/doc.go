// Package trigger fires jobs. Interval triggers run on an in-process
// ticker with optional jitter; webhook triggers expose authenticated
// HTTP endpoints that accept a firing and return immediately; cron
// triggers are declared in configuration and fired by an external
// clock through the same Fire entry point. A wildcard trigger
// (job "*") expands into one independent run per declared job.
package trigger
