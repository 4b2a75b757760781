// Package simulation runs the closed loop of the twin: demand, controller,
// feasibility enforcement, battery, KPIs and one StepRecord per timestep.
//
// A run is strictly sequential and deterministic for a given seed. External
// data is resolved before the loop (PV) or at day boundaries (measured
// demand), records are streamed to a runlog sink as they are produced and
// observers such as metrics sinks or the MQTT guidance stream consume the
// event bus asynchronously.
package simulation
