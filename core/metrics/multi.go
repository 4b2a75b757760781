package metrics

import "errors"

// MultiSink fans observations out to several sinks. Every sink is called
// even when an earlier one fails; the errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordStep(obs StepObservation) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordStep(obs))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordTaskDrop(ev TaskDrop) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(TaskDropRecorder); ok {
			errs = append(errs, r.RecordTaskDrop(ev))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordFallback(ev Fallback) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(FallbackRecorder); ok {
			errs = append(errs, r.RecordFallback(ev))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordRun(sum RunSummary) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(RunRecorder); ok {
			errs = append(errs, r.RecordRun(sum))
		}
	}
	return errors.Join(errs...)
}

// Close closes the sinks that hold connections.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
