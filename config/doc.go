// Package config defines the declarative model for ingestion jobs,
// pipelines, triggers, and secret requirements, and loads them from
// per-environment YAML directories.
//
// A configuration root is laid out as:
//
//	<root>/<env>/jobs/*.yaml       one JobDefinition per file
//	<root>/<env>/pipelines/*.yaml  one PipelineSpec per file
//	<root>/<env>/triggers/*.yaml   one TriggerDefinition per file
//	<root>/<env>/secrets.yaml      declared secret requirements (optional)
//
// LoadSnapshot reads an entire environment into an immutable Snapshot.
// Callers reload a fresh Snapshot per run rather than mutating a shared
// one. Application bootstrap settings (logging, observability, webhook
// listener) live in AppConfig and are loaded separately via LoadApp,
// which layers config.yml, .env, and process environment variables.
package config
