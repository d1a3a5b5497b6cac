package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"powerstream2mqtt/internal/core/domain"
)

func TestRingLogEmpty(t *testing.T) {
	var l RingLog

	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Entries())
	_, ok := l.Last()
	assert.False(t, ok)
}

func TestRingLogKeepsNewestWindow(t *testing.T) {
	require := require.New(t)

	var l RingLog
	for i := 0; i < 150; i++ {
		l.Append(domain.DecisionLogEntry{Reason: fmt.Sprintf("entry %d", i)})
	}

	require.Equal(DecisionLogCapacity, l.Len())
	require.Equal(uint64(150), l.Total())

	entries := l.Entries()
	require.Len(entries, DecisionLogCapacity)

	// oldest 50 entries were overwritten
	assert.Equal(t, "entry 50", entries[0].Reason)
	assert.Equal(t, "entry 149", entries[len(entries)-1].Reason)

	last, ok := l.Last()
	require.True(ok)
	assert.Equal(t, "entry 149", last.Reason)
}

func TestRingLogOrderBeforeWrap(t *testing.T) {
	var l RingLog
	for i := 0; i < 10; i++ {
		l.Append(domain.DecisionLogEntry{Reason: fmt.Sprintf("entry %d", i)})
	}

	entries := l.Entries()
	require.Len(t, entries, 10)
	for i, e := range entries {
		assert.Equal(t, fmt.Sprintf("entry %d", i), e.Reason)
	}
}
