package metrics

// MultiSink fanouts task outcomes to multiple sinks.
type MultiSink struct {
	Sinks []BuildSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...BuildSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordTaskOutcome forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordTaskOutcome(res TaskOutcome) error {
	for _, s := range m.Sinks {
		if err := s.RecordTaskOutcome(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordRunSummary forwards run summaries when supported by the sink.
func (m *MultiSink) RecordRunSummary(sum RunSummary) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(RunSummaryRecorder); ok {
			if err := rec.RecordRunSummary(sum); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordLedgerSample forwards ledger snapshots when supported by the sink.
func (m *MultiSink) RecordLedgerSample(sample LedgerSample) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(LedgerRecorder); ok {
			if err := rec.RecordLedgerSample(sample); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordConstraintFallback forwards vintage fallbacks when supported by the sink.
func (m *MultiSink) RecordConstraintFallback(ev ConstraintFallback) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ConstraintFallbackRecorder); ok {
			if err := rec.RecordConstraintFallback(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
