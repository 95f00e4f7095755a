package session

import "sync"

// Lease is one unit of in-flight work on a session. Done ends it exactly
// once, so it can be deferred around a dispatch that may fail or panic.
type Lease struct {
	table *Table
	rec   *record
	once  sync.Once
}

// Done decrements the session's in-flight count. The lease stays valid after
// the session is evicted or released.
func (l *Lease) Done() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		l.rec.mu.Lock()
		defer l.rec.mu.Unlock()
		l.rec.s.CurrentVerifications--
		if l.rec.s.CurrentVerifications < 0 {
			panic(&IntegrityError{SessionID: l.rec.s.ID, Detail: "negative in-flight verification count"})
		}
		l.rec.s.LastActivity = l.table.clock()
	})
}
