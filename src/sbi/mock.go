package sbi

import "sync"

/// Mock is a firmware stand-in for tests: Feed queues bytes for Getchar to
/// return one at a time, Output accumulates everything written via
/// Putchar, and Shutdown just records that it was called instead of
/// exiting the process.
type Mock struct {
	sync.Mutex
	in       []byte
	out      []byte
	timer    uint64
	vendor   uint64
	shutdown bool
}

/// Feed appends bytes to the back of the input queue Getchar drains.
func (m *Mock) Feed(data []byte) {
	m.Lock()
	defer m.Unlock()
	m.in = append(m.in, data...)
}

/// Putchar records ch in the output log.
func (m *Mock) Putchar(ch byte) {
	m.Lock()
	defer m.Unlock()
	m.out = append(m.out, ch)
}

/// Getchar pops the next fed byte, or returns NoInput if the queue is
/// empty.
func (m *Mock) Getchar() byte {
	m.Lock()
	defer m.Unlock()
	if len(m.in) == 0 {
		return NoInput
	}
	b := m.in[0]
	m.in = m.in[1:]
	return b
}

/// SetTimer records the most recent timer target.
func (m *Mock) SetTimer(target uint64) {
	m.Lock()
	defer m.Unlock()
	m.timer = target
}

/// Timer returns the most recently armed timer target.
func (m *Mock) Timer() uint64 {
	m.Lock()
	defer m.Unlock()
	return m.timer
}

/// Shutdown marks the mock as shut down instead of exiting the test
/// process.
func (m *Mock) Shutdown() {
	m.Lock()
	defer m.Unlock()
	m.shutdown = true
}

/// ShutdownCalled reports whether Shutdown has been invoked.
func (m *Mock) ShutdownCalled() bool {
	m.Lock()
	defer m.Unlock()
	return m.shutdown
}

/// VendorID returns a fixed placeholder id (spec.md §6 names the call but
/// assigns it no particular value).
func (m *Mock) VendorID() uint64 {
	if m.vendor == 0 {
		return 0x1234
	}
	return m.vendor
}

/// Output returns everything written via Putchar so far.
func (m *Mock) Output() []byte {
	m.Lock()
	defer m.Unlock()
	return append([]byte(nil), m.out...)
}
