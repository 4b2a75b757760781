// Package metrics defines the sinks that observe a running simulation.
// Sinks like PromSink and InfluxSink record per-step observations and can be
// combined with NewMultiSink. Optional recorder interfaces cover dropped
// tasks, collaborator fallbacks and run summaries. The factory helpers return
// a MultiSink automatically when multiple sinks are configured.
package metrics
