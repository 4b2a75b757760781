// Package forecast resolves the PV power series a run is simulated against.
// Providers return irradiance; this package converts it to array output and
// aligns it on simulation steps. Providers are optional collaborators: the
// synthetic provider is deterministic and never fails, which makes it the
// fallback for every other source.
package forecast
