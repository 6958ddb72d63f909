package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func sec(n int) time.Time { return t0.Add(time.Duration(n) * time.Second) }

func TestOutOfOrderAnalysisReleasedOldestFirst(t *testing.T) {
	s := NewSequencer[string](time.Minute, 8)
	s.Register("T1", sec(0), sec(5))
	s.Register("T2", sec(10), sec(20))

	out, err := s.Complete("T2", "T2-analyzed")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = s.Complete("T1", "T1-analyzed")
	require.NoError(t, err)
	assert.Equal(t, []string{"T1-analyzed", "T2-analyzed"}, out)
	assert.Zero(t, s.Pending())
}

func TestRegisterOrdersByStartTime(t *testing.T) {
	s := NewSequencer[string](0, 0)
	s.Register("late-start", sec(30), sec(40))
	s.Register("early-start", sec(0), sec(41))

	out, err := s.Complete("late-start", "b")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = s.Complete("early-start", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestCompleteRejectsUnknownAndDuplicate(t *testing.T) {
	s := NewSequencer[int](time.Minute, 4)

	_, err := s.Complete("T1", 1)
	assert.Error(t, err, "analysis before the trip ended")

	s.Register("T1", sec(0), sec(1))
	s.Register("T2", sec(2), sec(3))
	_, err = s.Complete("T2", 2)
	require.NoError(t, err)
	_, err = s.Complete("T2", 2)
	assert.Error(t, err)
}

func TestExpireUnblocksLaterTrips(t *testing.T) {
	s := NewSequencer[string](time.Minute, 8)
	s.Register("T1", sec(0), sec(10))
	s.Register("T2", sec(20), sec(30))
	_, err := s.Complete("T2", "T2")
	require.NoError(t, err)

	assert.Empty(t, s.Expire(sec(60)))
	assert.Equal(t, []string{"T2"}, s.Expire(sec(70)))

	out, err := s.Complete("T1", "T1")
	require.NoError(t, err)
	assert.Equal(t, []string{"T1"}, out, "expired trip released on arrival")
	assert.Zero(t, s.Pending())
}

func TestCapacityPushesOutOldest(t *testing.T) {
	s := NewSequencer[string](0, 2)
	s.Register("T1", sec(0), sec(1))
	s.Register("T2", sec(2), sec(3))
	_, err := s.Complete("T2", "T2")
	require.NoError(t, err)

	out := s.Register("T3", sec(4), sec(5))
	assert.Equal(t, []string{"T2"}, out)
	assert.Equal(t, 1, s.Pending())

	out, err = s.Complete("T1", "T1")
	require.NoError(t, err)
	assert.Equal(t, []string{"T1"}, out)
}

func TestRegisterTwiceIsIgnored(t *testing.T) {
	s := NewSequencer[string](0, 0)
	s.Register("T1", sec(0), sec(1))
	s.Register("T1", sec(0), sec(2))
	assert.Equal(t, 1, s.Pending())

	s.Reset()
	assert.Zero(t, s.Pending())
}

func TestTracks(t *testing.T) {
	s := NewSequencer[string](time.Minute, 8)
	s.Register("T1", sec(0), sec(0))
	assert.True(t, s.Tracks("T1"))

	s.Expire(sec(61))
	assert.True(t, s.Tracks("T1"), "expired trips still accept a late analysis")

	_, err := s.Complete("T1", "late")
	require.NoError(t, err)
	assert.False(t, s.Tracks("T1"))
	assert.False(t, s.Tracks("never"))
}
