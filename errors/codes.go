package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Configuration graph errors (always fatal, raised before any pipeline runs)
const (
	// ErrCodeCycleDetected indicates a dependency cycle in a job or pipeline graph.
	ErrCodeCycleDetected ErrorCode = "CYCLE_DETECTED"
	// ErrCodeUnknownDependency indicates a depends_on entry referencing an undeclared pipeline or job.
	ErrCodeUnknownDependency ErrorCode = "UNKNOWN_DEPENDENCY"
	// ErrCodeSelfDependency indicates a pipeline or job depending on itself.
	ErrCodeSelfDependency ErrorCode = "SELF_DEPENDENCY"
	// ErrCodeInvalidConfig indicates a configuration file failed validation.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	// ErrCodeJobNotFound indicates the named job is not declared in the snapshot.
	ErrCodeJobNotFound ErrorCode = "JOB_NOT_FOUND"
	// ErrCodePipelineNotFound indicates the named pipeline has no definition.
	ErrCodePipelineNotFound ErrorCode = "PIPELINE_NOT_FOUND"
)

// Secrets errors (fatal, aggregated, raised before dispatch)
const (
	// ErrCodeMissingSecret indicates one or more required secrets could not be resolved.
	ErrCodeMissingSecret ErrorCode = "MISSING_SECRET"
)

// Pipeline execution errors
const (
	// ErrCodePipelineTransient indicates a pipeline attempt failed in a retryable way.
	ErrCodePipelineTransient ErrorCode = "PIPELINE_TRANSIENT"
	// ErrCodePipelinePermanent indicates a pipeline failed and must not be retried.
	ErrCodePipelinePermanent ErrorCode = "PIPELINE_PERMANENT"
	// ErrCodeDependencySkipped indicates a pipeline was skipped because an upstream dependency failed.
	ErrCodeDependencySkipped ErrorCode = "DEPENDENCY_SKIPPED"
	// ErrCodeSLAExceeded indicates the job-level SLA wall clock expired before the pipeline ran.
	ErrCodeSLAExceeded ErrorCode = "SLA_EXCEEDED"
	// ErrCodeRunCanceled indicates the run was canceled before the pipeline was dispatched.
	ErrCodeRunCanceled ErrorCode = "RUN_CANCELED"
)

// Connector/collaborator errors
const (
	// ErrCodeConnectionFailed indicates a failed connection to a source or destination.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeTimeout indicates a source or destination call timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeUnauthorized indicates a trigger request failed authentication.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodePipelineTransient: true,
	ErrCodeConnectionFailed:  true,
	ErrCodeTimeout:           true,
	ErrCodePipelinePermanent: false,
	ErrCodeInternal:          false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
