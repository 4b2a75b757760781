// Package events defines the simulation events emitted on the event bus.
//
// Available event types:
//   - DayStartEvent: a new simulated day began
//   - StepEvent: a timestep completed and its record was stored
//   - TaskDroppedEvent: a pending task left the day unfinished
//   - FallbackEvent: a collaborator failed and a fallback was used
//   - RunFinishedEvent: the run completed
package events
