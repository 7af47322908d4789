package copytrade

// Ledger is the bounded set of trade identities already acted upon.
// Insertion order is tracked explicitly so overflow eviction keeps the
// most recently inserted half; relying on map iteration order here would
// evict arbitrary entries, including fresh ones.
//
// The ledger is owned by a single copy loop and is not safe for concurrent
// use.
type Ledger struct {
	cap    int
	retain int
	order  []string
	seen   map[string]struct{}
}

func NewLedger(capacity int) *Ledger {
	if capacity < 2 {
		capacity = 2
	}
	return &Ledger{
		cap:    capacity,
		retain: (capacity + 1) / 2,
		seen:   make(map[string]struct{}, capacity),
	}
}

// IsNovel reports whether the identity has not been marked seen.
func (l *Ledger) IsNovel(identity string) bool {
	_, ok := l.seen[identity]
	return !ok
}

// MarkSeen records an identity, evicting the oldest entries once the cap is
// exceeded. Marking an identity twice is a no-op for ordering purposes.
func (l *Ledger) MarkSeen(identity string) {
	if _, ok := l.seen[identity]; ok {
		return
	}
	l.seen[identity] = struct{}{}
	l.order = append(l.order, identity)
	if len(l.order) <= l.cap {
		return
	}
	cut := len(l.order) - l.retain
	for _, old := range l.order[:cut] {
		delete(l.seen, old)
	}
	l.order = append(l.order[:0], l.order[cut:]...)
}

func (l *Ledger) Len() int { return len(l.order) }
