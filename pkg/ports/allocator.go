// Package ports hands out free TCP ports from a fixed range.
package ports

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

const (
	DefaultMin = 10000
	DefaultMax = 65535
)

// ErrExhausted is returned when every port in the range is taken.
var ErrExhausted = errors.New("no free port in range")

// Allocator finds the lowest port in [Min, Max] that is not bound on the
// host. There is no reservation ledger: a port is free if a listener can be
// opened on it right now.
type Allocator struct {
	Min  int
	Max  int
	Host string

	// probe reports whether port can be bound. Replaced in tests.
	probe func(host string, port int) bool
}

func NewAllocator(min, max int) *Allocator {
	if min <= 0 {
		min = DefaultMin
	}
	if max <= 0 || max > DefaultMax {
		max = DefaultMax
	}
	return &Allocator{Min: min, Max: max, probe: canBind}
}

// Allocate returns the lowest free port, skipping any listed in exclude.
// Callers pass ports already written into descriptors of stopped
// applications so that those are not handed out twice.
func (a *Allocator) Allocate(exclude ...int) (int, error) {
	if a.Min > a.Max {
		return 0, fmt.Errorf("invalid port range %d-%d", a.Min, a.Max)
	}

	skip := make(map[int]struct{}, len(exclude))
	for _, p := range exclude {
		skip[p] = struct{}{}
	}

	probe := a.probe
	if probe == nil {
		probe = canBind
	}

	for port := a.Min; port <= a.Max; port++ {
		if _, taken := skip[port]; taken {
			continue
		}
		if probe(a.Host, port) {
			return port, nil
		}
	}

	return 0, ErrExhausted
}

func canBind(host string, port int) bool {
	l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}
