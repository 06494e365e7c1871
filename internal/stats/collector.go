// Package stats periodically samples the in-game clock and online player
// count through the console and persists the snapshots for history queries,
// fanning live readings out to subscribers.
package stats

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/reedfamily/zedctl/internal/console"
	"github.com/reedfamily/zedctl/internal/db"
)

const retention = 7 * 24 * time.Hour

type Collector struct {
	store    *db.Store
	console  *console.Console
	interval time.Duration

	mu        sync.RWMutex
	latest    *db.Snapshot
	listeners map[chan *db.Snapshot]struct{}

	cancel context.CancelFunc
}

func NewCollector(store *db.Store, con *console.Console, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Collector{
		store:     store,
		console:   con,
		interval:  interval,
		listeners: make(map[chan *db.Snapshot]struct{}),
	}
}

func (c *Collector) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.collect()
			}
		}
	}()

	log.Printf("snapshot collector started (%s interval)", c.interval)
}

func (c *Collector) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Collector) collect() {
	if !c.console.Connected() {
		return
	}

	snap := db.Snapshot{RecordedAt: time.Now().UTC()}

	if clock, err := c.console.Clock(); err == nil {
		snap.GameDay = clock.Day
		snap.GameHour = clock.Hour
		snap.GameMinute = clock.Minute
	} else {
		log.Printf("stats: clock: %v", err)
	}

	players, err := c.console.Players()
	if err != nil {
		log.Printf("stats: players: %v", err)
		return
	}
	snap.PlayersOnline = len(players)

	if err := c.store.RecordSnapshot(snap); err != nil {
		log.Printf("stats: record: %v", err)
	}
	if err := c.store.PruneSnapshots(time.Now().Add(-retention)); err != nil {
		log.Printf("stats: prune: %v", err)
	}

	c.mu.Lock()
	c.latest = &snap
	listeners := make([]chan *db.Snapshot, 0, len(c.listeners))
	for ch := range c.listeners {
		listeners = append(listeners, ch)
	}
	c.mu.Unlock()

	for _, ch := range listeners {
		select {
		case ch <- &snap:
		default:
			// Drop if listener is slow.
		}
	}
}

func (c *Collector) Latest() *db.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

func (c *Collector) Subscribe() chan *db.Snapshot {
	ch := make(chan *db.Snapshot, 1)
	c.mu.Lock()
	c.listeners[ch] = struct{}{}
	c.mu.Unlock()
	return ch
}

func (c *Collector) Unsubscribe(ch chan *db.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.listeners[ch]; ok {
		delete(c.listeners, ch)
		close(ch)
	}
}
