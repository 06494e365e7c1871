package rcon

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Handshake prompts used by the 7 Days to Die telnet console. The server
// sends no newline after the password prompt, so the handshake scans the
// stream for substrings instead of whole lines.
const (
	passwordPrompt = "Please enter password:"
	loginBanner    = "Press 'help' for help"
	loginRejected  = "Password incorrect"
)

const (
	dialTimeout      = 10 * time.Second
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
)

// Session owns the raw telnet connection to the server console. It is the
// only component allowed to touch the socket: every consumer goes through
// SendLine/ReadLine so command replies and asynchronous event lines stay on
// a single read cursor.
type Session struct {
	addr string

	mu     sync.Mutex // guards conn and closed for writers and Close
	conn   net.Conn
	closed bool

	// Read-side state. ReadLine is only ever called from one goroutine
	// (the handshake, then the client's reader loop), so these need no lock.
	r       *bufio.Reader
	partial strings.Builder // bytes of a line interrupted by a read deadline
}

// Dial opens the telnet connection and performs the password handshake.
// It returns ErrAuthFailed when the server rejects the credential and
// ErrTimeout when the server never acknowledges the login.
func Dial(ctx context.Context, host string, port int, password string) (*Session, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, netErr("dial", addr, err)
	}

	s := &Session{
		addr: addr,
		conn: conn,
		r:    bufio.NewReader(conn),
	}

	if err := s.handshake(password); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) handshake(password string) error {
	if _, err := s.readUntil(handshakeTimeout, passwordPrompt); err != nil {
		return err
	}
	if err := s.SendLine(password); err != nil {
		return err
	}
	banner, err := s.readUntil(handshakeTimeout, loginBanner, loginRejected)
	if err != nil {
		return err
	}
	if strings.Contains(banner, loginRejected) {
		return ErrAuthFailed
	}
	// The marker match stops mid-line; consume the rest of the banner line
	// so its tail is not attributed to the first command's reply.
	return s.drainLine(time.Second)
}

// drainLine discards buffered bytes through the next newline. A timeout with
// no newline is fine: there is nothing left to misattribute.
func (s *Session) drainLine(timeout time.Duration) error {
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return netErr("handshake", s.addr, err)
	}
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			if isTimeout(err) {
				return nil
			}
			return netErr("handshake", s.addr, err)
		}
		if b == '\n' {
			return nil
		}
	}
}

// readUntil consumes bytes until one of the markers appears or the timeout
// elapses. Only used during the handshake, before line-based reads begin.
func (s *Session) readUntil(timeout time.Duration, markers ...string) (string, error) {
	deadline := time.Now().Add(timeout)
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return "", netErr("handshake", s.addr, err)
	}

	var buf strings.Builder
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			if isTimeout(err) {
				return buf.String(), ErrTimeout
			}
			return buf.String(), netErr("handshake", s.addr, err)
		}
		buf.WriteByte(b)
		for _, m := range markers {
			if strings.Contains(buf.String(), m) {
				return buf.String(), nil
			}
		}
	}
}

// Addr returns the remote address of the session.
func (s *Session) Addr() string { return s.addr }

// SendLine writes text followed by CRLF, the console's line terminator.
func (s *Session) SendLine(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.conn == nil {
		return ErrNotConnected
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return netErr("write", s.addr, err)
	}
	if _, err := s.conn.Write([]byte(text + "\r\n")); err != nil {
		return netErr("write", s.addr, err)
	}
	return nil
}

// ReadLine returns the next newline-delimited line from the stream, blocking
// up to timeout. A quiet timeout is not an error: it returns ok=false so the
// caller can poll without busy-waiting. Bytes of a line cut off by the
// deadline are kept and prepended to the next read, so no data is lost.
func (s *Session) ReadLine(timeout time.Duration) (line string, ok bool, err error) {
	s.mu.Lock()
	conn, closed := s.conn, s.closed
	s.mu.Unlock()
	if closed || conn == nil {
		return "", false, ErrNotConnected
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", false, netErr("read", s.addr, err)
	}

	chunk, err := s.r.ReadString('\n')
	if err != nil {
		s.partial.WriteString(chunk)
		if isTimeout(err) {
			return "", false, nil
		}
		return "", false, netErr("read", s.addr, err)
	}

	full := s.partial.String() + chunk
	s.partial.Reset()
	return strings.TrimRight(full, "\r\n"), true, nil
}

// Close shuts the connection down. Idempotent and safe to call concurrently
// with a blocked ReadLine, which will then fail with a NetError.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
