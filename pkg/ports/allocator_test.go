package ports

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateLowestFree(t *testing.T) {
	busy := map[int]bool{10000: true, 10001: true}
	a := NewAllocator(10000, 10010)
	a.probe = func(_ string, port int) bool { return !busy[port] }

	port, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, 10002, port)
}

func TestAllocateHonoursExclude(t *testing.T) {
	a := NewAllocator(10000, 10010)
	a.probe = func(string, int) bool { return true }

	port, err := a.Allocate(10000, 10001, 10003)
	require.NoError(t, err)
	assert.Equal(t, 10002, port)
}

func TestAllocateExhausted(t *testing.T) {
	a := NewAllocator(10000, 10002)
	a.probe = func(string, int) bool { return false }

	_, err := a.Allocate()
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestAllocateInvalidRange(t *testing.T) {
	a := &Allocator{Min: 20, Max: 10}
	_, err := a.Allocate()
	assert.Error(t, err)
}

func TestNewAllocatorDefaults(t *testing.T) {
	a := NewAllocator(0, 70000)
	assert.Equal(t, DefaultMin, a.Min)
	assert.Equal(t, DefaultMax, a.Max)
}

func TestAllocateSkipsBoundPort(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	bound := l.Addr().(*net.TCPAddr).Port
	a := NewAllocator(bound, bound+50)
	if a.Max > DefaultMax {
		a.Max = DefaultMax
	}
	a.Host = "127.0.0.1"

	port, err := a.Allocate()
	if err != nil {
		t.Skipf("no free port near %d: %v", bound, err)
	}
	assert.NotEqual(t, bound, port)
	assert.GreaterOrEqual(t, port, bound)
}
