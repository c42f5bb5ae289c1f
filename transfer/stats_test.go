package transfer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStats_Snapshot(t *testing.T) {
	s := newStats(1000)

	snap := s.Snapshot()
	assert.Equal(t, int64(0), snap.Done)
	assert.Equal(t, int64(1000), snap.Total)
	assert.Equal(t, float64(0), snap.Percent)

	s.Add(250)
	snap = s.Snapshot()
	assert.Equal(t, int64(250), snap.Done)
	assert.InDelta(t, 25.0, snap.Percent, 0.001)
	assert.Greater(t, snap.BytesPerSecond, float64(0))
	assert.Greater(t, snap.ETA, time.Duration(0))
}

func TestStats_Rollback(t *testing.T) {
	s := newStats(1000)
	s.Add(400)
	s.Add(-400)
	assert.Equal(t, int64(0), s.Snapshot().Done)
}

func TestSnapshot_String(t *testing.T) {
	snap := Snapshot{Done: 500, Total: 1000, Percent: 50, BytesPerSecond: 100}
	out := snap.String()
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "/s")
}
