package sbi

import "testing"

func TestMockGetcharSentinelWhenEmpty(t *testing.T) {
	m := &Mock{}
	if b := m.Getchar(); b != NoInput {
		t.Fatalf("expected NoInput sentinel, got %x", b)
	}
}

func TestMockFeedAndGetcharFIFO(t *testing.T) {
	m := &Mock{}
	m.Feed([]byte("hi"))
	if b := m.Getchar(); b != 'h' {
		t.Fatalf("got %c want h", b)
	}
	if b := m.Getchar(); b != 'i' {
		t.Fatalf("got %c want i", b)
	}
	if b := m.Getchar(); b != NoInput {
		t.Fatal("expected NoInput after queue drains")
	}
}

func TestMockPutcharAccumulatesOutput(t *testing.T) {
	m := &Mock{}
	for _, c := range "ok\n" {
		m.Putchar(byte(c))
	}
	if got := string(m.Output()); got != "ok\n" {
		t.Fatalf("got %q want %q", got, "ok\\n")
	}
}

func TestMockSetTimerRecordsTarget(t *testing.T) {
	m := &Mock{}
	m.SetTimer(0xdead)
	if m.Timer() != 0xdead {
		t.Fatalf("got %x want dead", m.Timer())
	}
}

func TestMockShutdownRecordsCall(t *testing.T) {
	m := &Mock{}
	if m.ShutdownCalled() {
		t.Fatal("shutdown must start false")
	}
	m.Shutdown()
	if !m.ShutdownCalled() {
		t.Fatal("shutdown must be recorded")
	}
}

func TestProviderInterfaceSatisfiedByMock(t *testing.T) {
	var _ Provider = &Mock{}
}
