package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock(t *testing.T) {
	t.Parallel()

	c := RealClock{}
	start := c.Now()
	assert.GreaterOrEqual(t, c.Since(start), time.Duration(0))
}

func TestMockClock_AdvanceAndSet(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewMockClock(base)
	assert.Equal(t, base, c.Now())
	assert.Equal(t, base, c.Now(), "no step configured")

	c.Advance(90 * time.Second)
	assert.Equal(t, 90*time.Second, c.Since(base))

	later := base.Add(time.Hour)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestSteppingClock(t *testing.T) {
	t.Parallel()

	base := time.Unix(0, 0).UTC()
	c := NewSteppingClock(base, 10*time.Millisecond)
	first := c.Now()
	second := c.Now()
	assert.Equal(t, base, first)
	assert.Equal(t, 10*time.Millisecond, second.Sub(first))
	assert.Equal(t, 20*time.Millisecond, c.Since(base))
}

func TestClockInterface(t *testing.T) {
	t.Parallel()

	var _ Clock = RealClock{}
	var _ Clock = NewMockClock(time.Now())
}
