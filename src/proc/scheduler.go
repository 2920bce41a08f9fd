package proc

import "sync"
import "time"

import "accnt"
import "defs"

/// RunQueue_t is the single-hart FIFO ready queue (spec.md §4.6
/// "Scheduler": "a single run queue, FIFO").
type RunQueue_t struct {
	sync.Mutex
	q []*Pcb_t
}

func (rq *RunQueue_t) enqueue(p *Pcb_t) {
	rq.Lock()
	rq.q = append(rq.q, p)
	rq.Unlock()
}

func (rq *RunQueue_t) dequeue() (*Pcb_t, bool) {
	rq.Lock()
	defer rq.Unlock()
	if len(rq.q) == 0 {
		return nil, false
	}
	p := rq.q[0]
	rq.q = rq.q[1:]
	return p, true
}

/// Result reports what a process did with the turn the scheduler gave it
/// (spec.md §4.6's suspend_switch/exit_switch): Yielded means it gave up
/// the hart voluntarily and belongs back on the ready queue, Blocked means
/// it is waiting on something else to Wake it, and Exited means Exit
/// already ran and finalized it as a Zombie.
type Result int

const (
	Yielded Result = iota
	Blocked
	Exited
)

/// Dispatch runs one process's turn and reports what happened. It is the
/// hosted stand-in for a bare-metal port's __switch into the process's
/// saved register context (spec.md §4.6): instead of resuming raw
/// registers, the scheduler calls straight into Go code driving that
/// process, be it a real user-mode interpreter loop or a test harness.
type Dispatch func(p *Pcb_t) Result

/// Scheduler_t owns the ready queue and tracks which PCB currently holds
/// the (single, simulated) hart.
type Scheduler_t struct {
	rq      RunQueue_t
	mu      sync.Mutex
	current *Pcb_t
}

/// NewScheduler returns an empty scheduler.
func NewScheduler() *Scheduler_t {
	return &Scheduler_t{}
}

/// ActiveScheduler is the kernel's single run queue, installed by boot
/// wiring the same way sbi.Current installs the firmware boundary:
/// subsystems that need to know "who is running right now" (procfs's
/// /self/exe) read it here
/// rather than threading a *Scheduler_t through every call.
var ActiveScheduler *Scheduler_t

/// CurrentProc returns the PCB the active scheduler is presently running,
/// or nil if there is none (no scheduler installed yet, or the idle loop
/// is running).
func CurrentProc() *Pcb_t {
	if ActiveScheduler == nil {
		return nil
	}
	return ActiveScheduler.Current()
}

/// Enqueue marks p Ready and adds it to the run queue (spec.md §4.6
/// "Creation"/"Fork": a new process starts life Ready).
func (s *Scheduler_t) Enqueue(p *Pcb_t) {
	p.Lock()
	p.Status = Ready
	p.Unlock()
	s.rq.enqueue(p)
}

/// Wake transitions a Blocked process back onto the run queue, e.g. once
/// the child a Wait was polling for becomes a Zombie, or a pipe a read
/// blocked on gets data (spec.md §4.6, §4.10).
func (s *Scheduler_t) Wake(p *Pcb_t) {
	s.Enqueue(p)
}

/// Current returns the PCB presently holding the hart, or nil if the idle
/// loop is running.
func (s *Scheduler_t) Current() *Pcb_t {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func itimerSignal(w accnt.Which_t) int {
	switch w {
	case accnt.ITIMER_REAL:
		return defs.SIGALRM
	case accnt.ITIMER_VIRTUAL:
		return defs.SIGVTALRM
	default:
		return defs.SIGPROF
	}
}

/// RunOne dequeues the next Ready process, processes any itimer
/// expirations it accumulated while off the hart, gives it one turn via
/// dispatch, and re-enqueues it if it yielded (spec.md §4.6 "Scheduler",
/// §9's itimer signals). It returns false when the queue was empty, which
/// the caller's idle loop treats as "nothing to run right now".
func (s *Scheduler_t) RunOne(dispatch Dispatch) bool {
	p, ok := s.rq.dequeue()
	if !ok {
		return false
	}

	now := time.Now().UnixNano()
	p.Lock()
	p.Status = Running
	realDelta := now - p.lastTickReal
	userDelta := p.Accnt.Userns - p.lastTickUser
	sysDelta := p.Accnt.Sysns - p.lastTickSys
	p.lastTickReal = now
	p.lastTickUser = p.Accnt.Userns
	p.lastTickSys = p.Accnt.Sysns
	expired := p.Itimers.Tick(realDelta, userDelta, sysDelta)
	p.UpSince = now
	p.Unlock()

	for _, w := range expired {
		Raise(p, itimerSignal(w))
	}

	s.mu.Lock()
	s.current = p
	s.mu.Unlock()

	result := dispatch(p)

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if result == Yielded {
		p.Lock()
		p.Status = Ready
		p.Unlock()
		s.rq.enqueue(p)
	}
	return true
}
