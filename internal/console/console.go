// Package console owns the live connection to the game server and exposes
// the administrative operations shared by the interactive shell and the web
// API. Exactly one connection exists at a time; the monitor and correlator
// hold references through this package, never the socket itself.
package console

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/reedfamily/zedctl/internal/db"
	"github.com/reedfamily/zedctl/internal/game"
	"github.com/reedfamily/zedctl/internal/monitor"
	"github.com/reedfamily/zedctl/internal/rcon"
)

// Console binds the rcon client, the game adapter, alias resolution and the
// event monitor. Safe for concurrent use.
type Console struct {
	adapter game.Adapter
	store   *db.Store
	monitor *monitor.Monitor

	mu     sync.Mutex
	client *rcon.Client
	addr   string
}

func New(adapter game.Adapter, store *db.Store, mon *monitor.Monitor) *Console {
	return &Console{adapter: adapter, store: store, monitor: mon}
}

// Connect dials the server, authenticates and starts the reader that feeds
// the event monitor. An existing connection is torn down first.
func (c *Console) Connect(ctx context.Context, host string, port int, password string) error {
	c.Disconnect()

	sess, err := rcon.Dial(ctx, host, port, password)
	if err != nil {
		return err
	}

	client := rcon.NewClient(sess, c.monitor.Observe)
	client.Start()

	c.mu.Lock()
	c.client = client
	c.addr = sess.Addr()
	c.mu.Unlock()

	log.Printf("connected to %s", sess.Addr())
	return nil
}

// Disconnect closes the connection. In-flight commands return their partial
// buffers; in-memory player sessions are discarded. Idempotent.
func (c *Console) Disconnect() {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.addr = ""
	c.mu.Unlock()

	if client != nil {
		client.Close()
		c.monitor.Reset()
		log.Printf("disconnected")
	}
}

// Connected reports whether a live, non-failed connection exists.
func (c *Console) Connected() bool {
	cl := c.clientRef()
	return cl != nil && !cl.Closed()
}

// Addr returns the remote address, or "" when disconnected.
func (c *Console) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil || c.client.Closed() {
		return ""
	}
	return c.addr
}

// Adapter exposes the game dialect in use.
func (c *Console) Adapter() game.Adapter { return c.adapter }

// Monitor exposes the event monitor for subscriptions.
func (c *Console) Monitor() *monitor.Monitor { return c.monitor }

// TapLines subscribes to the raw console line stream; nil when disconnected.
func (c *Console) TapLines() (chan string, func()) {
	cl := c.clientRef()
	if cl == nil {
		return nil, func() {}
	}
	ch := cl.TapLines()
	return ch, func() { cl.Untap(ch) }
}

func (c *Console) clientRef() *rcon.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

// Execute sends a raw command and returns the accumulated reply.
func (c *Console) Execute(command string) (string, error) {
	cl := c.clientRef()
	if cl == nil {
		return "", rcon.ErrNotConnected
	}
	return cl.Execute(command)
}

// ExecuteWait is Execute with an explicit wait window.
func (c *Console) ExecuteWait(command string, waitWindow time.Duration) (string, error) {
	cl := c.clientRef()
	if cl == nil {
		return "", rcon.ErrNotConnected
	}
	return cl.ExecuteWait(command, waitWindow)
}

// Players returns the current online roster.
func (c *Console) Players() ([]game.Player, error) {
	resp, err := c.Execute(c.adapter.ListPlayersCommand())
	if err != nil {
		return nil, err
	}
	return c.adapter.ParsePlayers(resp), nil
}

// Clock returns the in-game day and time.
func (c *Console) Clock() (game.Clock, error) {
	resp, err := c.Execute(c.adapter.TimeCommand())
	if err != nil {
		return game.Clock{}, err
	}
	clock, ok := c.adapter.ParseTime(resp)
	if !ok {
		return game.Clock{}, fmt.Errorf("could not parse time from reply %q", resp)
	}
	return clock, nil
}

// SetDay sets the game clock with a backwards-day safety check: moving the
// day backwards resets horde progression, so it requires force.
func (c *Console) SetDay(day, hour, minute int, force bool) (string, error) {
	if day < 1 {
		return "", fmt.Errorf("day must be 1 or greater")
	}
	if hour < 0 || hour > 23 {
		return "", fmt.Errorf("hour must be between 0 and 23")
	}
	if minute < 0 || minute > 59 {
		return "", fmt.Errorf("minute must be between 0 and 59")
	}

	current, err := c.Clock()
	if err != nil {
		if !force {
			return "", fmt.Errorf("could not determine current day (use force to override): %w", err)
		}
	} else if day < current.Day && !force {
		return "", fmt.Errorf("cannot set day backwards from %d to %d without force", current.Day, day)
	}

	resp, err := c.Execute(fmt.Sprintf("settime %d %d %d", day, hour, minute))
	if err != nil {
		return "", err
	}
	if strings.Contains(resp, "ERR") || strings.Contains(resp, "Error") {
		return "", fmt.Errorf("setting time failed: %s", strings.TrimSpace(resp))
	}
	return fmt.Sprintf("time set to day %d, %02d:%02d", day, hour, minute), nil
}

// Say broadcasts a message to all players, optionally prefixed with a sender.
func (c *Console) Say(message, sender string) error {
	if sender != "" {
		message = fmt.Sprintf("(%s) %s", sender, message)
	}
	_, err := c.Execute(fmt.Sprintf("say %q", message))
	return err
}

// Give hands an item to a player (alias-resolved) and returns the reply.
func (c *Console) Give(player, item string, quantity, quality int) (string, error) {
	name, err := c.resolve(player)
	if err != nil {
		return "", err
	}
	return c.Execute(fmt.Sprintf("give %s %s %d %d", name, item, quantity, quality))
}

// BundleResult reports the per-item outcome of a bundle give.
type BundleResult struct {
	Item     db.BundleItem
	Response string
	OK       bool
}

// GiveBundle hands every item of a named bundle to a player, one command per
// item, checking each reply for the console's failure markers.
func (c *Console) GiveBundle(player, bundleName string) ([]BundleResult, error) {
	bundle, err := c.store.BundleByName(bundleName)
	if err != nil {
		return nil, err
	}
	name, err := c.resolve(player)
	if err != nil {
		return nil, err
	}

	results := make([]BundleResult, 0, len(bundle.Items))
	for _, item := range bundle.Items {
		cmd := fmt.Sprintf("give %s %s %d %d", name, item.ItemName, item.Quantity, item.Quality)
		resp, err := c.ExecuteWait(cmd, 2*time.Second)
		if err != nil {
			return results, err
		}
		ok := !strings.Contains(resp, "ERR") && !strings.Contains(resp, "Wrong")
		results = append(results, BundleResult{Item: item, Response: resp, OK: ok})
	}
	return results, nil
}

// SpawnEntity spawns count entities near a player.
func (c *Console) SpawnEntity(player, entityID string, count int) (string, error) {
	name, err := c.resolve(player)
	if err != nil {
		return "", err
	}
	return c.Execute(fmt.Sprintf("spawnentity %s %s %d", name, entityID, count))
}

// Teleport moves a player to coordinates.
func (c *Console) Teleport(player string, x, y, z int) (string, error) {
	name, err := c.resolve(player)
	if err != nil {
		return "", err
	}
	return c.Execute(fmt.Sprintf("tele %s %d %d %d", name, x, y, z))
}

// TeleportToPlayer moves a player to another player.
func (c *Console) TeleportToPlayer(player, target string) (string, error) {
	name, err := c.resolve(player)
	if err != nil {
		return "", err
	}
	targetName, err := c.resolve(target)
	if err != nil {
		return "", err
	}
	return c.Execute(fmt.Sprintf("teleportplayer %s %s", name, targetName))
}

// Shutdown stops the server gracefully.
func (c *Console) Shutdown() (string, error) {
	return c.Execute(c.adapter.ShutdownCommand())
}

// resolve maps an alias to the full player name and quotes names containing
// spaces for the wire.
func (c *Console) resolve(nameOrAlias string) (string, error) {
	name, err := c.store.ResolveName(nameOrAlias)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", nameOrAlias, err)
	}
	return QuoteName(name), nil
}

// QuoteName wraps a player name in quotes when it contains spaces, as the
// console's argument parser requires.
func QuoteName(name string) string {
	if strings.ContainsRune(name, ' ') {
		return `"` + name + `"`
	}
	return name
}
