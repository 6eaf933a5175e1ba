// Package metrics defines the sinks that record simulation and scheduling
// outcomes. Sinks such as the Prometheus and InfluxDB ones in infra/metrics
// are created from configuration through the factory registry; several sinks
// are combined with NewMultiSink. Optional recorders are discovered with type
// assertions, so a sink only implements what it can store.
package metrics
