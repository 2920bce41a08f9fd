package sbi

import "bufio"
import "os"

import "golang.org/x/term"

/// Console is the hosted firmware stand-in used by a real boot: putchar
/// writes straight to the host's stdout, and a background goroutine drains
/// stdin into a small buffered channel so Getchar can poll it without
/// blocking, the same split OpenSBI's console and the core's polling
/// getchar loop have on real hardware. The stdin-pump-plus-channel shape
/// follows the teacher-adjacent console driver pattern (a goroutine
/// reading raw bytes into a channel a consumer drains non-blockingly)
/// rather than inventing one from scratch.
type Console struct {
	out   *os.File
	fd    int
	state *term.State
	keyCh chan byte
}

/// NewConsole wires stdin/stdout as the firmware console. If stdin is not
/// a terminal (e.g. piped input in a test harness), it is read in whatever
/// mode it is in rather than failing -- a hosted kernel should still boot
/// against a pipe or a file.
func NewConsole() (*Console, error) {
	fd := int(os.Stdin.Fd())
	c := &Console{out: os.Stdout, fd: fd, keyCh: make(chan byte, 256)}
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return nil, err
		}
		c.state = state
	}
	go c.pump()
	return c, nil
}

// pump copies stdin bytes into keyCh until stdin closes. A full channel
// drops the oldest pending keystroke rather than blocking the reader, since
// a slow/absent console consumer must never stall whatever goroutine feeds
// it.
func (c *Console) pump() {
	r := bufio.NewReader(os.Stdin)
	for {
		b, err := r.ReadByte()
		if err != nil {
			close(c.keyCh)
			return
		}
		select {
		case c.keyCh <- b:
		default:
			select {
			case <-c.keyCh:
			default:
			}
			c.keyCh <- b
		}
	}
}

/// Putchar writes ch to the host's stdout.
func (c *Console) Putchar(ch byte) {
	c.out.Write([]byte{ch})
}

/// Getchar returns the next buffered stdin byte, or NoInput if none has
/// arrived yet.
func (c *Console) Getchar() byte {
	select {
	case b, ok := <-c.keyCh:
		if !ok {
			return NoInput
		}
		return b
	default:
		return NoInput
	}
}

/// SetTimer is a no-op here: this kernel's scheduler (proc.Scheduler_t)
/// drives itimer expirations off the host's wall clock rather than a real
/// `stimecmp` CSR, so there is no hardware timer to program (spec.md §9).
func (c *Console) SetTimer(target uint64) {}

/// Shutdown restores the terminal (if it was put in raw mode) and exits
/// the host process.
func (c *Console) Shutdown() {
	if c.state != nil {
		term.Restore(c.fd, c.state)
	}
	os.Exit(0)
}

/// VendorID reports a placeholder id; this hosted console has no real
/// firmware vendor to ask.
func (c *Console) VendorID() uint64 { return 0 }
