// Package forecast holds the HTTP irradiance providers. Both clients satisfy
// core/forecast.Provider and are meant to be wrapped with forecast.WithFallback
// so a network failure degrades to the synthetic curve instead of failing a run.
package forecast
