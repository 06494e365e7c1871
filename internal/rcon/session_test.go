package rcon

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer accepts one connection and hands it to script on its own
// goroutine. The listener closes with the test.
func fakeServer(t *testing.T, script func(conn net.Conn)) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		script(conn)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

// acceptLogin plays the server side of the password handshake and returns a
// reader positioned after the client's password line.
func acceptLogin(t *testing.T, conn net.Conn) *bufio.Reader {
	t.Helper()
	r := bufio.NewReader(conn)
	conn.Write([]byte("Please enter password:"))
	if _, err := r.ReadString('\n'); err != nil {
		t.Errorf("read password: %v", err)
	}
	conn.Write([]byte("Logon successful.\r\nPress 'help' for help.\r\n"))
	return r
}

func TestDialHandshake(t *testing.T) {
	host, port := fakeServer(t, func(conn net.Conn) {
		acceptLogin(t, conn)
	})

	sess, err := Dial(context.Background(), host, port, "hunter2")
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, net.JoinHostPort(host, strconv.Itoa(port)), sess.Addr())
}

func TestDialWrongPassword(t *testing.T) {
	host, port := fakeServer(t, func(conn net.Conn) {
		r := bufio.NewReader(conn)
		conn.Write([]byte("Please enter password:"))
		r.ReadString('\n')
		conn.Write([]byte("Password incorrect, please enter password:"))
	})

	_, err := Dial(context.Background(), host, port, "wrong")
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestHandshakeConsumesFullBannerLine(t *testing.T) {
	host, port := fakeServer(t, func(conn net.Conn) {
		// acceptLogin's banner ends with ".\r\n" past the marker; that tail
		// must not leak into the line stream.
		acceptLogin(t, conn)
		conn.Write([]byte("first real line\r\n"))
		time.Sleep(time.Second)
	})

	sess, err := Dial(context.Background(), host, port, "hunter2")
	require.NoError(t, err)
	defer sess.Close()

	line, ok, err := sess.ReadLine(2 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first real line", line)
}

func TestReadLineResumesPartialLine(t *testing.T) {
	ready := make(chan struct{})
	host, port := fakeServer(t, func(conn net.Conn) {
		acceptLogin(t, conn)
		// Half a line, a pause longer than the client's read timeout,
		// then the rest.
		conn.Write([]byte("INF Player conn"))
		<-ready
		conn.Write([]byte("ected\r\nnext line\r\n"))
		time.Sleep(time.Second)
	})

	sess, err := Dial(context.Background(), host, port, "hunter2")
	require.NoError(t, err)
	defer sess.Close()

	_, ok, err := sess.ReadLine(100 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok, "partial line must not be surfaced yet")

	close(ready)
	line, ok, err := sess.ReadLine(2 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "INF Player connected", line)

	line, ok, err = sess.ReadLine(2 * time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "next line", line)
}

func TestSendLineAppendsCRLF(t *testing.T) {
	got := make(chan string, 1)
	host, port := fakeServer(t, func(conn net.Conn) {
		r := acceptLogin(t, conn)
		raw, _ := r.ReadString('\n')
		got <- raw
	})

	sess, err := Dial(context.Background(), host, port, "hunter2")
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, sess.SendLine("listplayers"))
	select {
	case raw := <-got:
		assert.Equal(t, "listplayers\r\n", raw)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the command")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	host, port := fakeServer(t, func(conn net.Conn) {
		acceptLogin(t, conn)
		time.Sleep(time.Second)
	})

	sess, err := Dial(context.Background(), host, port, "hunter2")
	require.NoError(t, err)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())

	_, _, err = sess.ReadLine(time.Second)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, sess.SendLine("x"), ErrNotConnected)
}
