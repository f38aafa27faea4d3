// Package journal keeps undo records for state that must roll back as a unit.
//
// Every component touched by a ledger operation embeds a Log. The ledger opens
// a transaction on all of them, and either commits every log or rolls every
// log back, so no partial write of a failed operation survives.
package journal

// Log is an undo log. Records are only kept while a transaction is open.
// Log is not safe for concurrent use; callers serialize through their own lock.
type Log struct {
	active bool
	undo   []func()
}

// Begin opens a transaction. Opening one while another is active keeps the
// existing records, so nested Begin calls join the outer transaction.
func (l *Log) Begin() {
	l.active = true
}

// Active reports whether writes are currently being recorded.
func (l *Log) Active() bool {
	return l.active
}

// Record stores fn to be run on rollback. It is a no-op outside a transaction.
func (l *Log) Record(fn func()) {
	if !l.active {
		return
	}
	l.undo = append(l.undo, fn)
}

// Commit keeps all writes made since Begin.
func (l *Log) Commit() {
	l.active = false
	l.undo = l.undo[:0]
}

// Rollback undoes all writes made since Begin, newest first.
func (l *Log) Rollback() {
	for i := len(l.undo) - 1; i >= 0; i-- {
		l.undo[i]()
	}
	l.active = false
	l.undo = l.undo[:0]
}

// Len is the number of pending undo records.
func (l *Log) Len() int {
	return len(l.undo)
}
