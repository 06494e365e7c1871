// Package monitor maintains player-session state from the console's
// asynchronous event lines. It is fed every line the reader yields and must
// survive arbitrary server output: the line grammar is externally controlled
// and only partially known, so anything unparseable is ignored, never fatal.
package monitor

import (
	"log"
	"sync"
	"time"

	"github.com/reedfamily/zedctl/internal/game"
)

// Recorder persists session accounting. Implemented by the SQLite store;
// storage failures are logged and swallowed so the monitor stays up.
type Recorder interface {
	RecordLogin(player string, at time.Time) error
	RecordLogout(player string, at time.Time, duration time.Duration) error
}

// Event is a classified console event enriched with session accounting.
type Event struct {
	Type        game.EventType `json:"type"`
	Player      string         `json:"player"`
	Message     string         `json:"message,omitempty"`
	At          time.Time      `json:"at"`
	Duration    time.Duration  `json:"duration,omitempty"`
	HasDuration bool           `json:"has_duration"`
}

// Monitor owns the in-memory session map. All monitoring state lives here,
// per instance; two connections get two monitors with no cross-contamination.
//
// Observe runs on the console's reader goroutine and must not block, so
// storage writes are handed to a single worker goroutine that preserves
// login/logout order.
type Monitor struct {
	adapter game.Adapter
	rec     Recorder
	now     func() time.Time
	recs    chan func()

	mu        sync.Mutex
	sessions  map[string]time.Time // player name -> login time
	listeners map[chan Event]struct{}
}

func New(adapter game.Adapter, rec Recorder) *Monitor {
	m := &Monitor{
		adapter:   adapter,
		rec:       rec,
		now:       time.Now,
		recs:      make(chan func(), 256),
		sessions:  make(map[string]time.Time),
		listeners: make(map[chan Event]struct{}),
	}
	go func() {
		for fn := range m.recs {
			fn()
		}
	}()
	return m
}

// record queues a storage write for the worker. A full queue means storage
// has been stalled for hundreds of events; the write is dropped and logged
// rather than blocking the reader.
func (m *Monitor) record(fn func()) {
	select {
	case m.recs <- fn:
	default:
		log.Printf("monitor: persistence queue full, dropping record")
	}
}

// Observe classifies one console line and updates session state. Safe for
// any input; a line matching no grammar leaves all state unchanged.
func (m *Monitor) Observe(line string) {
	ev := m.adapter.ParseLogLine(line)
	if ev == nil || ev.Player == "" {
		return
	}

	now := m.now()
	out := Event{Type: ev.Type, Player: ev.Player, Message: ev.Message, At: now}

	switch ev.Type {
	case game.EventLogin:
		// A login with no intervening logout replaces the prior session.
		m.mu.Lock()
		m.sessions[ev.Player] = now
		m.mu.Unlock()
		if m.rec != nil {
			player := ev.Player
			m.record(func() {
				if err := m.rec.RecordLogin(player, now); err != nil {
					log.Printf("monitor: record login %q: %v", player, err)
				}
			})
		}

	case game.EventLogout:
		m.mu.Lock()
		loginAt, known := m.sessions[ev.Player]
		if known {
			delete(m.sessions, ev.Player)
		}
		m.mu.Unlock()

		if known {
			d := now.Sub(loginAt)
			if d < 0 {
				d = 0
			}
			out.Duration = d
			out.HasDuration = true
			if m.rec != nil {
				player := ev.Player
				m.record(func() {
					if err := m.rec.RecordLogout(player, now, d); err != nil {
						log.Printf("monitor: record logout %q: %v", player, err)
					}
				})
			}
		}
		// A logout with no matching login still notifies, with unknown
		// duration: server message formats are not fully enumerable.

	case game.EventChat:
		// No session-state mutation.
	}

	m.emit(out)
}

func (m *Monitor) emit(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.listeners {
		select {
		case ch <- ev:
		default:
			// Drop if listener is slow.
		}
	}
}

// Subscribe returns a channel of classified events for display layers.
func (m *Monitor) Subscribe() chan Event {
	ch := make(chan Event, 16)
	m.mu.Lock()
	m.listeners[ch] = struct{}{}
	m.mu.Unlock()
	return ch
}

func (m *Monitor) Unsubscribe(ch chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.listeners[ch]; ok {
		delete(m.listeners, ch)
		close(ch)
	}
}

// Sessions returns a copy of the active session map.
func (m *Monitor) Sessions() map[string]time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]time.Time, len(m.sessions))
	for k, v := range m.sessions {
		out[k] = v
	}
	return out
}

// Reset discards in-memory sessions. Called on disconnect: sessions are
// best-effort tracking, not authoritative, and are not flushed as logouts.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]time.Time)
}
