package engine

// ledger tracks the memory reserved by running tasks against the global
// budget. It is read and written only by the scheduling loop.
type ledger struct {
	budgetMB   int
	reservedMB int
}

func newLedger(budgetMB int) *ledger {
	return &ledger{budgetMB: budgetMB}
}

func (l *ledger) fits(mb int) bool {
	return l.reservedMB+mb <= l.budgetMB
}

func (l *ledger) reserve(mb int) {
	l.reservedMB += mb
}

func (l *ledger) release(mb int) {
	l.reservedMB -= mb
	if l.reservedMB < 0 {
		l.reservedMB = 0
	}
}
