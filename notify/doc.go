// Package notify dispatches job run outcomes to the channels a job's
// notification policy selects. The log channel is always available;
// webhook channels post a JSON summary of the run.
package notify
