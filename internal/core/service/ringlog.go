package service

import "powerstream2mqtt/internal/core/domain"

// DecisionLogCapacity is fixed: the log is a bounded window for logbook
// and diagnostics consumers, not an archive.
const DecisionLogCapacity = 100

// RingLog is a fixed-capacity circular buffer of decision entries.
// When full, the oldest entry is overwritten first.
type RingLog struct {
	entries [DecisionLogCapacity]domain.DecisionLogEntry
	next    int
	count   int
	total   uint64
}

func (l *RingLog) Append(entry domain.DecisionLogEntry) {
	l.entries[l.next] = entry
	l.next = (l.next + 1) % DecisionLogCapacity
	if l.count < DecisionLogCapacity {
		l.count++
	}
	l.total++
}

// Total counts every append ever made, including overwritten entries.
// Consumers use it to detect new entries between reads.
func (l *RingLog) Total() uint64 {
	return l.total
}

// Entries returns the logged decisions ordered oldest to newest.
func (l *RingLog) Entries() []domain.DecisionLogEntry {
	out := make([]domain.DecisionLogEntry, 0, l.count)
	start := l.next - l.count
	if start < 0 {
		start += DecisionLogCapacity
	}
	for i := 0; i < l.count; i++ {
		out = append(out, l.entries[(start+i)%DecisionLogCapacity])
	}
	return out
}

func (l *RingLog) Last() (domain.DecisionLogEntry, bool) {
	if l.count == 0 {
		return domain.DecisionLogEntry{}, false
	}
	idx := l.next - 1
	if idx < 0 {
		idx += DecisionLogCapacity
	}
	return l.entries[idx], true
}

func (l *RingLog) Len() int {
	return l.count
}
