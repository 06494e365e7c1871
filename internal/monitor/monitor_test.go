package monitor

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reedfamily/zedctl/internal/game"
)

// stubAdapter classifies lines of the form "login NAME", "logout NAME" and
// "chat NAME MESSAGE". Anything else is not an event.
type stubAdapter struct{}

func (stubAdapter) Game() string                      { return "stub" }
func (stubAdapter) ListPlayersCommand() string        { return "lp" }
func (stubAdapter) TimeCommand() string               { return "gt" }
func (stubAdapter) ShutdownCommand() string           { return "shutdown" }
func (stubAdapter) ParsePlayers(string) []game.Player { return nil }
func (stubAdapter) ParseTime(string) (game.Clock, bool) {
	return game.Clock{}, false
}

func (stubAdapter) ParseLogLine(line string) *game.Event {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return nil
	}
	switch parts[0] {
	case "login":
		return &game.Event{Type: game.EventLogin, Player: parts[1]}
	case "logout":
		return &game.Event{Type: game.EventLogout, Player: parts[1]}
	case "chat":
		msg := ""
		if len(parts) == 3 {
			msg = parts[2]
		}
		return &game.Event{Type: game.EventChat, Player: parts[1], Message: msg}
	}
	return nil
}

type recordedLogout struct {
	player   string
	duration time.Duration
}

// fakeRecorder is called from the monitor's persistence worker, so access
// goes through the mutex.
type fakeRecorder struct {
	mu      sync.Mutex
	logins  []string
	logouts []recordedLogout
	fail    bool
	delay   time.Duration
}

func (r *fakeRecorder) RecordLogin(player string, at time.Time) error {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("storage down")
	}
	r.logins = append(r.logins, player)
	return nil
}

func (r *fakeRecorder) RecordLogout(player string, at time.Time, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("storage down")
	}
	r.logouts = append(r.logouts, recordedLogout{player: player, duration: d})
	return nil
}

func (r *fakeRecorder) Logins() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.logins...)
}

func (r *fakeRecorder) Logouts() []recordedLogout {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedLogout(nil), r.logouts...)
}

func newTestMonitor(rec Recorder) (*Monitor, *time.Time) {
	m := New(stubAdapter{}, rec)
	now := time.Date(2026, 8, 20, 19, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestLoginStartsSessionAndRecords(t *testing.T) {
	rec := &fakeRecorder{}
	m, _ := newTestMonitor(rec)

	m.Observe("login Revlin")

	require.Contains(t, m.Sessions(), "Revlin")
	require.Eventually(t, func() bool {
		logins := rec.Logins()
		return len(logins) == 1 && logins[0] == "Revlin"
	}, time.Second, 10*time.Millisecond)
}

func TestLogoutComputesDuration(t *testing.T) {
	rec := &fakeRecorder{}
	m, now := newTestMonitor(rec)
	events := m.Subscribe()
	defer m.Unsubscribe(events)

	m.Observe("login Revlin")
	<-events
	*now = now.Add(90 * time.Minute)
	m.Observe("logout Revlin")

	ev := <-events
	assert.Equal(t, game.EventLogout, ev.Type)
	assert.True(t, ev.HasDuration)
	assert.Equal(t, 90*time.Minute, ev.Duration)

	require.Eventually(t, func() bool {
		return len(rec.Logouts()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, recordedLogout{player: "Revlin", duration: 90 * time.Minute}, rec.Logouts()[0])
	assert.Empty(t, m.Sessions())
}

func TestLogoutWithoutLoginStillNotifies(t *testing.T) {
	rec := &fakeRecorder{}
	m, _ := newTestMonitor(rec)
	events := m.Subscribe()
	defer m.Unsubscribe(events)

	m.Observe("logout Ghost")

	ev := <-events
	assert.Equal(t, game.EventLogout, ev.Type)
	assert.Equal(t, "Ghost", ev.Player)
	assert.False(t, ev.HasDuration)
	assert.Empty(t, rec.Logouts())
}

func TestDuplicateLoginReplacesSession(t *testing.T) {
	rec := &fakeRecorder{}
	m, now := newTestMonitor(rec)

	m.Observe("login Revlin")
	*now = now.Add(time.Hour)
	m.Observe("login Revlin")
	*now = now.Add(10 * time.Minute)
	m.Observe("logout Revlin")

	// Duration counts from the second login, not the first.
	require.Eventually(t, func() bool {
		return len(rec.Logouts()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 10*time.Minute, rec.Logouts()[0].duration)
}

func TestChatEmitsWithoutStateChange(t *testing.T) {
	m, _ := newTestMonitor(nil)
	events := m.Subscribe()
	defer m.Unsubscribe(events)

	m.Observe("chat Revlin anyone near the trader?")

	ev := <-events
	assert.Equal(t, game.EventChat, ev.Type)
	assert.Equal(t, "Revlin", ev.Player)
	assert.Equal(t, "anyone near the trader?", ev.Message)
	assert.Empty(t, m.Sessions())
}

func TestUnparsedLinesAreIgnored(t *testing.T) {
	m, _ := newTestMonitor(nil)
	events := m.Subscribe()
	defer m.Unsubscribe(events)

	m.Observe("INF Time: 41.25m FPS: 38.12")
	m.Observe("")

	select {
	case ev := <-events:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
	assert.Empty(t, m.Sessions())
}

func TestRecorderFailureDoesNotStopTracking(t *testing.T) {
	rec := &fakeRecorder{fail: true}
	m, _ := newTestMonitor(rec)

	m.Observe("login Revlin")

	// Storage failed but the in-memory session still exists.
	assert.Contains(t, m.Sessions(), "Revlin")
}

func TestSlowStorageDoesNotBlockObserve(t *testing.T) {
	rec := &fakeRecorder{delay: 200 * time.Millisecond}
	m, _ := newTestMonitor(rec)
	events := m.Subscribe()
	defer m.Unsubscribe(events)

	// Observe runs on the console's reader goroutine; a stalled write must
	// not delay it.
	start := time.Now()
	m.Observe("login Revlin")
	m.Observe("login Gravedigger")
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	// Both events were emitted immediately, ahead of persistence.
	assert.Equal(t, "Revlin", (<-events).Player)
	assert.Equal(t, "Gravedigger", (<-events).Player)

	require.Eventually(t, func() bool {
		return len(rec.Logins()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"Revlin", "Gravedigger"}, rec.Logins())
}

func TestResetDiscardsSessions(t *testing.T) {
	m, _ := newTestMonitor(nil)
	m.Observe("login Revlin")
	m.Observe("login Gravedigger")

	m.Reset()
	assert.Empty(t, m.Sessions())
}
