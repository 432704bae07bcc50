package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextDoublesUntilCap(t *testing.T) {
	b := New(50*time.Millisecond, 300*time.Millisecond)

	got := []time.Duration{b.Next(), b.Next(), b.Next(), b.Next(), b.Next()}
	want := []time.Duration{
		50 * time.Millisecond,
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
		300 * time.Millisecond,
	}
	assert.Equal(t, want, got)
}

func TestReset(t *testing.T) {
	b := New(time.Second, time.Minute)
	b.Next()
	b.Next()
	assert.Equal(t, 2, b.Attempt())

	b.Reset()
	assert.Equal(t, time.Second, b.Next())
}

func TestConstant(t *testing.T) {
	b := Constant(50 * time.Millisecond)
	for i := 0; i < 4; i++ {
		assert.Equal(t, 50*time.Millisecond, b.Next())
	}
}

func TestNewDefaults(t *testing.T) {
	b := New(0, 0)
	assert.Equal(t, time.Second, b.Next())
}
