package stream

// sequenceTracker watches the optional feed sequence numbers. Gaps are only
// counted; nothing is replayed or re-requested.
type sequenceTracker struct {
	last int64
	seen bool
}

// observe records seq and returns the number of skipped sequence numbers and
// whether seq arrived at or behind the last one seen. seq <= 0 is ignored.
func (s *sequenceTracker) observe(seq int64) (gap int64, outOfOrder bool) {
	if seq <= 0 {
		return 0, false
	}
	if !s.seen {
		s.seen = true
		s.last = seq
		return 0, false
	}
	if seq <= s.last {
		return 0, true
	}
	gap = seq - s.last - 1
	s.last = seq
	return gap, false
}

func (s *sequenceTracker) reset() {
	*s = sequenceTracker{}
}
