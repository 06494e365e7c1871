package rcon

import (
	"strings"
	"sync"
	"time"
)

const (
	// DefaultQuietPeriod is the read-silence interval after which a command
	// reply is considered complete. The console protocol has no terminator
	// for most commands, so completion is inferred from quiet.
	DefaultQuietPeriod = 500 * time.Millisecond

	// DefaultWaitWindow bounds the total time Execute spends collecting a
	// reply, regardless of how chatty the server is.
	DefaultWaitWindow = 5 * time.Second

	// pollInterval is how long the reader goroutine blocks per ReadLine call
	// before re-checking for shutdown.
	pollInterval = 500 * time.Millisecond
)

// LineSink receives every line the session yields, in arrival order. It must
// not block: it runs on the reader goroutine, interleaved with command
// traffic.
type LineSink func(line string)

type pendingCommand struct {
	text  string
	sent  time.Time
	lines chan string
}

// Client multiplexes the single console stream between command replies and
// asynchronous event lines. One reader goroutine owns all ReadLine calls and
// hands each line to (a) the active pending command, if any, and (b) the
// line sink, always. Because there is exactly one reader, no line is ever
// lost or duplicated between the two destinations.
type Client struct {
	sess *Session
	sink LineSink

	QuietPeriod time.Duration
	WaitWindow  time.Duration

	execMu sync.Mutex // serializes Execute: at most one pending command

	mu      sync.Mutex // guards pending and taps
	pending *pendingCommand
	taps    map[chan string]struct{}

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewClient wraps an authenticated session. sink may be nil.
func NewClient(sess *Session, sink LineSink) *Client {
	if sink == nil {
		sink = func(string) {}
	}
	return &Client{
		sess:        sess,
		sink:        sink,
		QuietPeriod: DefaultQuietPeriod,
		WaitWindow:  DefaultWaitWindow,
		taps:        make(map[chan string]struct{}),
		done:        make(chan struct{}),
	}
}

// Start launches the reader goroutine.
func (c *Client) Start() {
	c.wg.Add(1)
	go c.readLoop()
}

// Close stops the reader and closes the session. Any in-flight Execute
// returns its partial buffer rather than hanging. Idempotent.
func (c *Client) Close() {
	c.shutdown()
	c.wg.Wait()
}

func (c *Client) shutdown() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.sess.Close()
	})
}

func (c *Client) readLoop() {
	defer c.wg.Done()
	defer func() {
		c.mu.Lock()
		for ch := range c.taps {
			close(ch)
			delete(c.taps, ch)
		}
		c.mu.Unlock()
	}()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		line, ok, err := c.sess.ReadLine(pollInterval)
		if err != nil {
			// Socket gone: unblock Execute and stop. The owner decides
			// whether to surface the disconnect.
			c.shutdown()
			return
		}
		if !ok || line == "" {
			continue
		}
		c.dispatch(line)
	}
}

// dispatch attributes one line. Order matters: the pending buffer and the
// sink both see lines strictly in arrival order. A line that happens to be an
// event is still appended to the reply buffer; the correlator cannot tell
// them apart and must not drop what the monitor needs.
func (c *Client) dispatch(line string) {
	c.mu.Lock()
	if p := c.pending; p != nil {
		select {
		case p.lines <- line:
		default:
			// Reply longer than the buffer; Execute has stopped caring.
		}
	}
	for ch := range c.taps {
		select {
		case ch <- line:
		default:
			// Drop if tap is slow.
		}
	}
	c.mu.Unlock()

	c.sink(line)
}

// Execute sends a command and collects its reply using the default wait
// window. See ExecuteWait.
func (c *Client) Execute(command string) (string, error) {
	return c.ExecuteWait(command, c.WaitWindow)
}

// ExecuteWait sends a command and accumulates reply lines until either the
// quiet period elapses with no new line, the wait window is exceeded, or the
// client is closed. A timeout is not an error: an empty or partial buffer is
// a valid (if unhelpful) result. Calls are totally ordered; at most one
// command is in flight at a time.
func (c *Client) ExecuteWait(command string, waitWindow time.Duration) (string, error) {
	c.execMu.Lock()
	defer c.execMu.Unlock()

	select {
	case <-c.done:
		return "", ErrNotConnected
	default:
	}

	p := &pendingCommand{
		text:  command,
		sent:  time.Now(),
		lines: make(chan string, 1024),
	}
	c.mu.Lock()
	c.pending = p
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
	}()

	if err := c.sess.SendLine(command); err != nil {
		return "", err
	}

	overall := time.NewTimer(waitWindow)
	defer overall.Stop()
	quiet := time.NewTimer(c.QuietPeriod)
	defer quiet.Stop()

	var buf []string
	for {
		select {
		case line := <-p.lines:
			buf = append(buf, line)
			if !quiet.Stop() {
				select {
				case <-quiet.C:
				default:
				}
			}
			quiet.Reset(c.QuietPeriod)
		case <-quiet.C:
			return strings.Join(buf, "\n"), nil
		case <-overall.C:
			return strings.Join(buf, "\n"), nil
		case <-c.done:
			return strings.Join(buf, "\n"), nil
		}
	}
}

// TapLines subscribes to the raw line stream. Slow consumers miss lines
// rather than stalling the reader. The channel is closed on Close.
func (c *Client) TapLines() chan string {
	ch := make(chan string, 64)
	c.mu.Lock()
	c.taps[ch] = struct{}{}
	c.mu.Unlock()
	return ch
}

// Untap removes a raw line subscription.
func (c *Client) Untap(ch chan string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.taps[ch]; ok {
		delete(c.taps, ch)
		close(ch)
	}
}

// Closed reports whether the client has been shut down.
func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
