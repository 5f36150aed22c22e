// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ipadm

import (
	"fmt"
	"net/netip"
	"sync"
)

// Op is one recorded Mock operation, rendered as a stable string such
// as "create-if net0 v4" or "create-addr net0/addr1 net0:1 10.0.0.5/24".
type Op string

// Mock is a recording Handle for tests. Every call appends an Op; an
// optional Observer sees each Op before it is recorded and may inject
// an error.
type Mock struct {
	mu      sync.Mutex
	ops     []Op
	logical map[string]int

	// Observer, when set, is invoked for every operation. Returning a
	// non-nil error makes the operation fail.
	Observer func(op Op) error

	closed bool
}

// NewMock returns an empty recording handle.
func NewMock() *Mock {
	return &Mock{logical: make(map[string]int)}
}

// Ops returns a snapshot of all recorded operations in call order.
func (m *Mock) Ops() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Op, len(m.ops))
	copy(out, m.ops)
	return out
}

// Closed reports whether Close has been called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Mock) record(format string, args ...any) error {
	op := Op(fmt.Sprintf(format, args...))
	m.mu.Lock()
	obs := m.Observer
	m.mu.Unlock()
	if obs != nil {
		if err := obs(op); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.ops = append(m.ops, op)
	m.mu.Unlock()
	return nil
}

func (m *Mock) CreateIf(iface string, fam Family) error {
	return m.record("create-if %s %s", iface, fam)
}

func (m *Mock) AddLogicalIf(iface string, fam Family) (string, error) {
	m.mu.Lock()
	m.logical[iface]++
	name := fmt.Sprintf("%s:%d", iface, m.logical[iface])
	m.mu.Unlock()
	if err := m.record("add-logical-if %s %s", name, fam); err != nil {
		return "", err
	}
	return name, nil
}

func (m *Mock) CreateAddr(aobjname, iface string, addr netip.Prefix) error {
	return m.record("create-addr %s %s %s", aobjname, iface, addr)
}

func (m *Mock) BringUpLinkLocal(iface string) error {
	return m.record("up-linklocal %s", iface)
}

func (m *Mock) SetProp(proto Proto, prop, value string) error {
	return m.record("set-prop %s %s %s", proto, prop, value)
}

func (m *Mock) AddRoute(r Route) error {
	dst := "default"
	if r.Dst.IsValid() {
		dst = r.Dst.String()
	}
	return m.record("add-route %s %s via %s", r.Iface, dst, r.Gateway)
}

func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
