// Package shell implements the interactive administration prompt. It reads
// commands line by line, dispatches them against the console, and prints
// classified server events as they arrive in between prompts.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/anmitsu/go-shlex"
	"github.com/google/uuid"
	"github.com/reedfamily/zedctl/internal/config"
	"github.com/reedfamily/zedctl/internal/console"
	"github.com/reedfamily/zedctl/internal/db"
	"github.com/reedfamily/zedctl/internal/game"
	"github.com/reedfamily/zedctl/internal/monitor"
	"github.com/reedfamily/zedctl/internal/rcon"
	"github.com/reedfamily/zedctl/internal/scheduler"
	"github.com/reedfamily/zedctl/internal/stats"
)

// Shell is the interactive prompt. Not safe for concurrent Run calls.
type Shell struct {
	cfg       *config.Config
	console   *console.Console
	store     *db.Store
	collector *stats.Collector

	in  io.Reader
	out io.Writer

	debug     bool
	debugStop func()
}

func New(cfg *config.Config, con *console.Console, store *db.Store, collector *stats.Collector, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		cfg:       cfg,
		console:   con,
		store:     store,
		collector: collector,
		in:        in,
		out:       out,
	}
}

// Run reads commands until EOF, "exit", or context cancellation. Server
// events print asynchronously between prompts.
func (s *Shell) Run(ctx context.Context) error {
	events := s.console.Monitor().Subscribe()
	defer s.console.Monitor().Unsubscribe(events)
	go s.printEvents(events)

	fmt.Fprintln(s.out, "zedctl console. Type 'help' for commands.")

	scanner := bufio.NewScanner(s.in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		args, err := shlex.Split(line, true)
		if err != nil {
			fmt.Fprintf(s.out, "parse error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		if args[0] == "exit" || args[0] == "quit" {
			return nil
		}
		if err := s.dispatch(ctx, args[0], args[1:]); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}

func (s *Shell) printEvents(events chan monitor.Event) {
	for ev := range events {
		switch ev.Type {
		case game.EventLogin:
			fmt.Fprintf(s.out, "\n** %s logged in\n> ", ev.Player)
		case game.EventLogout:
			if ev.HasDuration {
				fmt.Fprintf(s.out, "\n** %s logged out after %s\n> ", ev.Player, formatDuration(ev.Duration))
			} else {
				fmt.Fprintf(s.out, "\n** %s logged out\n> ", ev.Player)
			}
		case game.EventChat:
			fmt.Fprintf(s.out, "\n<%s> %s\n> ", ev.Player, ev.Message)
		}
	}
}

func (s *Shell) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		s.printHelp()
		return nil
	case "connect":
		return s.cmdConnect(ctx, args)
	case "disconnect":
		s.console.Disconnect()
		return nil
	case "status":
		return s.cmdStatus()
	case "players":
		return s.cmdPlayers()
	case "give":
		return s.cmdGive(args)
	case "givebundle":
		return s.cmdGiveBundle(args)
	case "spawn":
		return s.cmdSpawn(args)
	case "tp":
		return s.cmdTeleport(args)
	case "tpto":
		return s.cmdTeleportTo(args)
	case "say":
		return s.cmdSay(args)
	case "cmd":
		return s.cmdRaw(args)
	case "getday":
		return s.cmdGetDay()
	case "setday":
		return s.cmdSetDay(args)
	case "alias":
		return s.cmdAlias(args)
	case "unalias":
		return s.cmdUnalias(args)
	case "aliases":
		return s.cmdAliases()
	case "stats":
		return s.cmdStats(args)
	case "sessions":
		return s.cmdSessions(args)
	case "items":
		return s.cmdItems(args)
	case "entities":
		return s.cmdEntities()
	case "bundle":
		return s.cmdBundle(args)
	case "schedule":
		return s.cmdSchedule(args)
	case "shutdown":
		return s.cmdShutdown()
	case "debug":
		return s.cmdDebug()
	default:
		return fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
}

func (s *Shell) printHelp() {
	fmt.Fprint(s.out, `Commands:
  connect [host [port]]            connect to the server console
  disconnect                       close the connection
  status                           connection and world status
  players                          list online players
  give <player> <item> [qty] [quality]
  givebundle <player> <bundle>     give every item in a bundle
  spawn <player> <entity> [count]  spawn entities near a player
  tp <player> <x> <y> <z>          teleport to coordinates
  tpto <player> <target>           teleport to another player
  say [-as <sender>] <message...>  broadcast a message
  cmd <raw command...>             send a raw console command
  getday                           show the in-game day and time
  setday <day> [hour] [min] [force]
  alias <full name> <alias>        create a player alias
  unalias <alias>                  remove an alias
  aliases                          list aliases
  stats <player>                   playtime statistics
  sessions <player> [n]            recent sessions
  items <search>                   search spawnable item names
  entities                         list spawnable entity ids
  bundle list|show|create|delete|additem|rmitem
  schedule list|add|enable|disable|rm
  shutdown                         stop the game server
  debug                            toggle raw console output
  exit                             quit
`)
}

func (s *Shell) cmdConnect(ctx context.Context, args []string) error {
	host := s.cfg.ServerHost
	port := s.cfg.ServerPort
	if len(args) >= 1 {
		host = args[0]
	}
	if len(args) >= 2 {
		p, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("bad port %q", args[1])
		}
		port = p
	}
	if host == "" {
		return errors.New("no host configured; usage: connect <host> [port]")
	}

	fmt.Fprintf(s.out, "connecting to %s:%d...\n", host, port)
	if err := s.console.Connect(ctx, host, port, s.cfg.ServerPassword); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "connected")
	return nil
}

func (s *Shell) cmdStatus() error {
	if !s.console.Connected() {
		fmt.Fprintln(s.out, "not connected")
		return nil
	}
	fmt.Fprintf(s.out, "connected to %s (%s)\n", s.console.Addr(), s.console.Adapter().Game())

	sessions := s.console.Monitor().Sessions()
	fmt.Fprintf(s.out, "%d player(s) with active sessions\n", len(sessions))
	for name, since := range sessions {
		fmt.Fprintf(s.out, "  %s (on for %s)\n", name, formatDuration(time.Since(since)))
	}

	if snap := s.collector.Latest(); snap != nil {
		fmt.Fprintf(s.out, "last snapshot: day %d %02d:%02d, %d online (%s ago)\n",
			snap.GameDay, snap.GameHour, snap.GameMinute, snap.PlayersOnline,
			formatDuration(time.Since(snap.RecordedAt)))
	}
	return nil
}

func (s *Shell) cmdPlayers() error {
	players, err := s.console.Players()
	if err != nil {
		return err
	}
	if len(players) == 0 {
		fmt.Fprintln(s.out, "no players online")
		return nil
	}
	for _, p := range players {
		fmt.Fprintf(s.out, "  [%s] %s\n", p.ID, p.Name)
	}
	return nil
}

func (s *Shell) cmdGive(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: give <player> <item> [qty] [quality]")
	}
	quantity, quality := 1, 1
	var err error
	if len(args) >= 3 {
		if quantity, err = strconv.Atoi(args[2]); err != nil || quantity < 1 {
			return fmt.Errorf("bad quantity %q", args[2])
		}
	}
	if len(args) >= 4 {
		if quality, err = strconv.Atoi(args[3]); err != nil || quality < 1 {
			return fmt.Errorf("bad quality %q", args[3])
		}
	}
	resp, err := s.console.Give(args[0], args[1], quantity, quality)
	if err != nil {
		return err
	}
	s.printResponse(resp)
	return nil
}

func (s *Shell) cmdGiveBundle(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: givebundle <player> <bundle>")
	}
	results, err := s.console.GiveBundle(args[0], args[1])
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("no bundle named %q", args[1])
		}
		return err
	}
	given := 0
	for _, res := range results {
		mark := "ok"
		if !res.OK {
			mark = "FAILED"
		} else {
			given++
		}
		fmt.Fprintf(s.out, "  %dx %s (quality %d): %s\n", res.Item.Quantity, res.Item.ItemName, res.Item.Quality, mark)
	}
	fmt.Fprintf(s.out, "gave %d/%d items\n", given, len(results))
	return nil
}

func (s *Shell) cmdSpawn(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: spawn <player> <entity> [count]")
	}
	count := 1
	if len(args) >= 3 {
		c, err := strconv.Atoi(args[2])
		if err != nil || c < 1 {
			return fmt.Errorf("bad count %q", args[2])
		}
		count = c
	}
	resp, err := s.console.SpawnEntity(args[0], args[1], count)
	if err != nil {
		return err
	}
	s.printResponse(resp)
	return nil
}

func (s *Shell) cmdTeleport(args []string) error {
	if len(args) != 4 {
		return errors.New("usage: tp <player> <x> <y> <z>")
	}
	coords := make([]int, 3)
	for i, a := range args[1:] {
		v, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("bad coordinate %q", a)
		}
		coords[i] = v
	}
	resp, err := s.console.Teleport(args[0], coords[0], coords[1], coords[2])
	if err != nil {
		return err
	}
	s.printResponse(resp)
	return nil
}

func (s *Shell) cmdTeleportTo(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: tpto <player> <target>")
	}
	resp, err := s.console.TeleportToPlayer(args[0], args[1])
	if err != nil {
		return err
	}
	s.printResponse(resp)
	return nil
}

func (s *Shell) cmdSay(args []string) error {
	sender := ""
	if len(args) >= 2 && args[0] == "-as" {
		sender = args[1]
		args = args[2:]
	}
	if len(args) == 0 {
		return errors.New("usage: say [-as <sender>] <message...>")
	}
	return s.console.Say(strings.Join(args, " "), sender)
}

func (s *Shell) cmdRaw(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: cmd <raw command...>")
	}
	resp, err := s.console.Execute(strings.Join(args, " "))
	if err != nil {
		return err
	}
	s.printResponse(resp)
	return nil
}

func (s *Shell) cmdGetDay() error {
	clock, err := s.console.Clock()
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "day %d, %02d:%02d\n", clock.Day, clock.Hour, clock.Minute)
	return nil
}

func (s *Shell) cmdSetDay(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: setday <day> [hour] [minute] [force]")
	}
	force := false
	if args[len(args)-1] == "force" {
		force = true
		args = args[:len(args)-1]
	}
	nums := []int{0, 12, 0}
	for i, a := range args {
		if i >= len(nums) {
			return errors.New("usage: setday <day> [hour] [minute] [force]")
		}
		v, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("bad number %q", a)
		}
		nums[i] = v
	}
	msg, err := s.console.SetDay(nums[0], nums[1], nums[2], force)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, msg)
	return nil
}

func (s *Shell) cmdAlias(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: alias <full name> <alias>")
	}
	if err := s.store.SetAlias(args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%q -> %s\n", args[0], args[1])
	return nil
}

func (s *Shell) cmdUnalias(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: unalias <alias>")
	}
	removed, err := s.store.RemoveAlias(args[0])
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("no alias %q", args[0])
	}
	fmt.Fprintln(s.out, "removed")
	return nil
}

func (s *Shell) cmdAliases() error {
	aliases, err := s.store.ListAliases()
	if err != nil {
		return err
	}
	if len(aliases) == 0 {
		fmt.Fprintln(s.out, "no aliases")
		return nil
	}
	for _, a := range aliases {
		fmt.Fprintf(s.out, "  %-16s %s\n", a.Alias, a.FullName)
	}
	return nil
}

func (s *Shell) cmdStats(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: stats <player>")
	}
	name, err := s.store.ResolveName(args[0])
	if err != nil {
		return err
	}
	st, err := s.store.PlayerStatsFor(name)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("no recorded sessions for %q", name)
		}
		return err
	}
	fmt.Fprintf(s.out, "%s: %d sessions, %s total, %s average\n",
		st.PlayerName, st.TotalSessions,
		formatDuration(time.Duration(st.TotalSeconds)*time.Second),
		formatDuration(time.Duration(st.AverageSeconds)*time.Second))
	if st.LastSeen != nil {
		fmt.Fprintf(s.out, "last seen %s\n", st.LastSeen.Format("2006-01-02 15:04"))
	}
	return nil
}

func (s *Shell) cmdSessions(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: sessions <player> [n]")
	}
	limit := 10
	if len(args) >= 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return fmt.Errorf("bad count %q", args[1])
		}
		limit = n
	}
	name, err := s.store.ResolveName(args[0])
	if err != nil {
		return err
	}
	sessions, err := s.store.RecentSessions(name, limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(s.out, "no recorded sessions")
		return nil
	}
	for _, sess := range sessions {
		line := sess.LoginTime.Format("2006-01-02 15:04")
		if sess.DurationSeconds != nil {
			line += " for " + formatDuration(time.Duration(*sess.DurationSeconds)*time.Second)
		} else {
			line += " (still online or untracked)"
		}
		fmt.Fprintf(s.out, "  %s\n", line)
	}
	return nil
}

func (s *Shell) cmdItems(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: items <search>")
	}
	resp, err := s.console.Execute("listitems " + args[0])
	if err != nil {
		return err
	}
	s.printResponse(resp)
	return nil
}

// cmdEntities lists spawnable entity ids. The console prints the known
// entity table when spawnentity is called with no arguments.
func (s *Shell) cmdEntities() error {
	resp, err := s.console.Execute("spawnentity")
	if err != nil {
		return err
	}
	s.printResponse(resp)
	return nil
}

func (s *Shell) cmdBundle(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: bundle list|show|create|delete|additem|rmitem ...")
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		bundles, err := s.store.ListBundles()
		if err != nil {
			return err
		}
		if len(bundles) == 0 {
			fmt.Fprintln(s.out, "no bundles")
			return nil
		}
		for _, b := range bundles {
			fmt.Fprintf(s.out, "  %-16s %d item(s)  %s\n", b.Name, b.ItemCount, b.Description)
		}
		return nil

	case "show":
		if len(rest) != 1 {
			return errors.New("usage: bundle show <name>")
		}
		b, err := s.store.BundleByName(rest[0])
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return fmt.Errorf("no bundle named %q", rest[0])
			}
			return err
		}
		fmt.Fprintf(s.out, "%s: %s\n", b.Name, b.Description)
		for _, item := range b.Items {
			fmt.Fprintf(s.out, "  %dx %s (quality %d)\n", item.Quantity, item.ItemName, item.Quality)
		}
		return nil

	case "create":
		if len(rest) < 1 {
			return errors.New("usage: bundle create <name> [description...]")
		}
		created, err := s.store.CreateBundle(rest[0], strings.Join(rest[1:], " "))
		if err != nil {
			return err
		}
		if !created {
			return fmt.Errorf("bundle %q already exists", rest[0])
		}
		fmt.Fprintln(s.out, "created")
		return nil

	case "delete":
		if len(rest) != 1 {
			return errors.New("usage: bundle delete <name>")
		}
		deleted, err := s.store.DeleteBundle(rest[0])
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("no bundle named %q", rest[0])
		}
		fmt.Fprintln(s.out, "deleted")
		return nil

	case "additem":
		if len(rest) < 2 {
			return errors.New("usage: bundle additem <bundle> <item> [qty] [quality]")
		}
		quantity, quality := 1, 1
		var err error
		if len(rest) >= 3 {
			if quantity, err = strconv.Atoi(rest[2]); err != nil || quantity < 1 {
				return fmt.Errorf("bad quantity %q", rest[2])
			}
		}
		if len(rest) >= 4 {
			if quality, err = strconv.Atoi(rest[3]); err != nil || quality < 1 {
				return fmt.Errorf("bad quality %q", rest[3])
			}
		}
		if err := s.store.AddBundleItem(rest[0], rest[1], quantity, quality); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return fmt.Errorf("no bundle named %q", rest[0])
			}
			return err
		}
		fmt.Fprintln(s.out, "added")
		return nil

	case "rmitem":
		if len(rest) != 2 {
			return errors.New("usage: bundle rmitem <bundle> <item>")
		}
		removed, err := s.store.RemoveBundleItem(rest[0], rest[1])
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("no item %q in bundle %q", rest[1], rest[0])
		}
		fmt.Fprintln(s.out, "removed")
		return nil

	default:
		return fmt.Errorf("unknown bundle subcommand %q", sub)
	}
}

func (s *Shell) cmdSchedule(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: schedule list|add|enable|disable|rm ...")
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		schedules, err := s.store.ListSchedules()
		if err != nil {
			return err
		}
		if len(schedules) == 0 {
			fmt.Fprintln(s.out, "no schedules")
			return nil
		}
		for _, sc := range schedules {
			state := "enabled"
			if !sc.Enabled {
				state = "disabled"
			}
			fmt.Fprintf(s.out, "  %s  %-16s %-14s %-8s %s (%s)\n", sc.ID, sc.Name, sc.CronExpr, sc.Action, sc.Payload, state)
		}
		return nil

	case "add":
		// Cron expressions contain spaces, so they must be quoted:
		//   schedule add nightly "0 4 * * *" say restarting soon
		if len(rest) < 3 {
			return errors.New(`usage: schedule add <name> "<cron>" <action> [payload...]`)
		}
		name, cronExpr, action := rest[0], rest[1], rest[2]
		payload := strings.Join(rest[3:], " ")
		if _, err := scheduler.Parse(cronExpr); err != nil {
			return fmt.Errorf("bad cron expression: %w", err)
		}
		if !scheduler.ValidAction(action) {
			return errors.New("action must be one of: say, command, shutdown")
		}
		if action != "shutdown" && payload == "" {
			return errors.New("payload required for say and command actions")
		}
		sc := db.Schedule{
			ID:       uuid.New().String()[:8],
			Name:     name,
			CronExpr: cronExpr,
			Action:   action,
			Payload:  payload,
			Enabled:  true,
		}
		if err := s.store.CreateSchedule(sc); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "created %s\n", sc.ID)
		return nil

	case "enable", "disable":
		if len(rest) != 1 {
			return fmt.Errorf("usage: schedule %s <id>", sub)
		}
		updated, err := s.store.SetScheduleEnabled(rest[0], sub == "enable")
		if err != nil {
			return err
		}
		if !updated {
			return fmt.Errorf("no schedule %q", rest[0])
		}
		fmt.Fprintln(s.out, sub+"d")
		return nil

	case "rm":
		if len(rest) != 1 {
			return errors.New("usage: schedule rm <id>")
		}
		deleted, err := s.store.DeleteSchedule(rest[0])
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("no schedule %q", rest[0])
		}
		fmt.Fprintln(s.out, "removed")
		return nil

	default:
		return fmt.Errorf("unknown schedule subcommand %q", sub)
	}
}

func (s *Shell) cmdShutdown() error {
	resp, err := s.console.Shutdown()
	if err != nil {
		return err
	}
	s.printResponse(resp)
	return nil
}

// cmdDebug toggles echoing of the raw console stream.
func (s *Shell) cmdDebug() error {
	if s.debug {
		s.debug = false
		if s.debugStop != nil {
			s.debugStop()
			s.debugStop = nil
		}
		fmt.Fprintln(s.out, "debug output off")
		return nil
	}

	lines, untap := s.console.TapLines()
	if lines == nil {
		return rcon.ErrNotConnected
	}
	s.debug = true
	s.debugStop = untap
	go func() {
		for line := range lines {
			fmt.Fprintf(s.out, "| %s\n", line)
		}
	}()
	fmt.Fprintln(s.out, "debug output on")
	return nil
}

func (s *Shell) printResponse(resp string) {
	resp = strings.TrimSpace(resp)
	if resp == "" {
		fmt.Fprintln(s.out, "(no reply)")
		return
	}
	for _, line := range strings.Split(resp, "\n") {
		fmt.Fprintf(s.out, "  %s\n", line)
	}
}

// formatDuration renders durations the way players read them, to the minute.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 && m == 0 {
		return "under a minute"
	}
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%02dm", h, m)
}
