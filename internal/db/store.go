package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned for lookups of rows that do not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the SQLite handle with the queries the tool needs: alias
// resolution, player-session accounting, item bundles, schedules and
// periodic server snapshots.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ── Aliases ──

type Alias struct {
	FullName string `json:"full_name"`
	Alias    string `json:"alias"`
}

// ResolveName maps an alias (or an already-full name) to the player's full
// name. Names absent from the table pass through unchanged.
func (s *Store) ResolveName(nameOrAlias string) (string, error) {
	var full string
	err := s.db.QueryRow("SELECT full_name FROM player_aliases WHERE alias = ?", nameOrAlias).Scan(&full)
	if err == nil {
		return full, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nameOrAlias, err
	}
	err = s.db.QueryRow("SELECT full_name FROM player_aliases WHERE full_name = ?", nameOrAlias).Scan(&full)
	if err == nil {
		return full, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nameOrAlias, err
	}
	return nameOrAlias, nil
}

// SetAlias creates or updates the alias for a player.
func (s *Store) SetAlias(fullName, alias string) error {
	_, err := s.db.Exec(`
		INSERT INTO player_aliases (full_name, alias) VALUES (?, ?)
		ON CONFLICT (full_name) DO UPDATE SET alias = excluded.alias`,
		fullName, alias)
	if err != nil {
		return fmt.Errorf("set alias: %w", err)
	}
	return nil
}

func (s *Store) RemoveAlias(alias string) (bool, error) {
	res, err := s.db.Exec("DELETE FROM player_aliases WHERE alias = ?", alias)
	if err != nil {
		return false, fmt.Errorf("remove alias: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) ListAliases() ([]Alias, error) {
	rows, err := s.db.Query("SELECT full_name, alias FROM player_aliases ORDER BY alias")
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	defer rows.Close()

	aliases := []Alias{}
	for rows.Next() {
		var a Alias
		if err := rows.Scan(&a.FullName, &a.Alias); err != nil {
			return nil, err
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}

// ── Player sessions ──

type Session struct {
	ID              int64      `json:"id"`
	PlayerName      string     `json:"player_name"`
	LoginTime       time.Time  `json:"login_time"`
	LogoutTime      *time.Time `json:"logout_time,omitempty"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty"`
}

// RecordLogin opens a session row. Any dangling open row for the same player
// (login with no observed logout) is closed with zero duration first, so a
// replaced in-memory session cannot double-count playtime.
func (s *Store) RecordLogin(player string, at time.Time) error {
	_, err := s.db.Exec(`
		UPDATE player_sessions SET logout_time = login_time, duration_seconds = 0
		WHERE player_name = ? AND logout_time IS NULL`, player)
	if err != nil {
		return fmt.Errorf("close dangling sessions: %w", err)
	}
	_, err = s.db.Exec(
		"INSERT INTO player_sessions (player_name, login_time) VALUES (?, ?)",
		player, at.UTC())
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}

// RecordLogout closes the most recent open session row for the player.
// Idempotent in effect: with no open row it is a no-op.
func (s *Store) RecordLogout(player string, at time.Time, duration time.Duration) error {
	_, err := s.db.Exec(`
		UPDATE player_sessions SET logout_time = ?, duration_seconds = ?
		WHERE id = (
			SELECT id FROM player_sessions
			WHERE player_name = ? AND logout_time IS NULL
			ORDER BY login_time DESC LIMIT 1
		)`, at.UTC(), int64(duration.Seconds()), player)
	if err != nil {
		return fmt.Errorf("record logout: %w", err)
	}
	return nil
}

func (s *Store) RecentSessions(player string, limit int) ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT id, player_name, login_time, logout_time, duration_seconds
		FROM player_sessions WHERE player_name = ?
		ORDER BY login_time DESC LIMIT ?`, player, limit)
	if err != nil {
		return nil, fmt.Errorf("recent sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		var logout sql.NullTime
		var dur sql.NullInt64
		if err := rows.Scan(&sess.ID, &sess.PlayerName, &sess.LoginTime, &logout, &dur); err != nil {
			return nil, err
		}
		if logout.Valid {
			t := logout.Time
			sess.LogoutTime = &t
		}
		if dur.Valid {
			d := dur.Int64
			sess.DurationSeconds = &d
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

type PlayerStats struct {
	PlayerName     string     `json:"player_name"`
	TotalSessions  int64      `json:"total_sessions"`
	TotalSeconds   int64      `json:"total_seconds"`
	AverageSeconds int64      `json:"average_seconds"`
	LastSeen       *time.Time `json:"last_seen,omitempty"`
}

// PlayerStatsFor aggregates completed sessions for a player.
func (s *Store) PlayerStatsFor(player string) (*PlayerStats, error) {
	var st PlayerStats
	st.PlayerName = player
	var total, avg sql.NullFloat64
	err := s.db.QueryRow(`
		SELECT COUNT(*), SUM(duration_seconds), AVG(duration_seconds)
		FROM player_sessions
		WHERE player_name = ? AND logout_time IS NOT NULL`, player,
	).Scan(&st.TotalSessions, &total, &avg)
	if err != nil {
		return nil, fmt.Errorf("player stats: %w", err)
	}
	if st.TotalSessions == 0 {
		return nil, ErrNotFound
	}
	st.TotalSeconds = int64(total.Float64)
	st.AverageSeconds = int64(avg.Float64)

	// Aggregates lose the column's declared type, so MAX(login_time) comes
	// back as a bare string. Fetch the newest row instead.
	var last time.Time
	err = s.db.QueryRow(`
		SELECT login_time FROM player_sessions
		WHERE player_name = ? AND logout_time IS NOT NULL
		ORDER BY login_time DESC LIMIT 1`, player).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("player stats: %w", err)
	}
	if err == nil {
		st.LastSeen = &last
	}
	return &st, nil
}

// ── Bundles ──

type BundleItem struct {
	ItemName string `json:"item_name"`
	Quantity int    `json:"quantity"`
	Quality  int    `json:"quality"`
}

type Bundle struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Items       []BundleItem `json:"items"`
}

type BundleSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ItemCount   int    `json:"item_count"`
}

// CreateBundle adds a named bundle. Returns false when it already exists.
func (s *Store) CreateBundle(name, description string) (bool, error) {
	res, err := s.db.Exec(`
		INSERT INTO item_bundles (bundle_name, description) VALUES (?, ?)
		ON CONFLICT (bundle_name) DO NOTHING`, name, description)
	if err != nil {
		return false, fmt.Errorf("create bundle: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// AddBundleItem adds or updates an item within a bundle.
func (s *Store) AddBundleItem(bundle, item string, quantity, quality int) error {
	var bundleID int64
	err := s.db.QueryRow("SELECT id FROM item_bundles WHERE bundle_name = ?", bundle).Scan(&bundleID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("bundle %q: %w", bundle, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("add bundle item: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO bundle_items (bundle_id, item_name, quantity, quality) VALUES (?, ?, ?, ?)
		ON CONFLICT (bundle_id, item_name)
		DO UPDATE SET quantity = excluded.quantity, quality = excluded.quality`,
		bundleID, item, quantity, quality)
	if err != nil {
		return fmt.Errorf("add bundle item: %w", err)
	}
	return nil
}

func (s *Store) BundleByName(name string) (*Bundle, error) {
	var id int64
	var b Bundle
	err := s.db.QueryRow(
		"SELECT id, bundle_name, description FROM item_bundles WHERE bundle_name = ?", name,
	).Scan(&id, &b.Name, &b.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bundle: %w", err)
	}

	rows, err := s.db.Query(
		"SELECT item_name, quantity, quality FROM bundle_items WHERE bundle_id = ? ORDER BY item_name", id)
	if err != nil {
		return nil, fmt.Errorf("get bundle items: %w", err)
	}
	defer rows.Close()

	b.Items = []BundleItem{}
	for rows.Next() {
		var it BundleItem
		if err := rows.Scan(&it.ItemName, &it.Quantity, &it.Quality); err != nil {
			return nil, err
		}
		b.Items = append(b.Items, it)
	}
	return &b, rows.Err()
}

func (s *Store) ListBundles() ([]BundleSummary, error) {
	rows, err := s.db.Query(`
		SELECT b.bundle_name, b.description, COUNT(bi.id)
		FROM item_bundles b
		LEFT JOIN bundle_items bi ON b.id = bi.bundle_id
		GROUP BY b.id, b.bundle_name, b.description
		ORDER BY b.bundle_name`)
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	defer rows.Close()

	bundles := []BundleSummary{}
	for rows.Next() {
		var b BundleSummary
		if err := rows.Scan(&b.Name, &b.Description, &b.ItemCount); err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return bundles, rows.Err()
}

func (s *Store) DeleteBundle(name string) (bool, error) {
	res, err := s.db.Exec("DELETE FROM item_bundles WHERE bundle_name = ?", name)
	if err != nil {
		return false, fmt.Errorf("delete bundle: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) RemoveBundleItem(bundle, item string) (bool, error) {
	res, err := s.db.Exec(`
		DELETE FROM bundle_items
		WHERE bundle_id = (SELECT id FROM item_bundles WHERE bundle_name = ?)
		AND item_name = ?`, bundle, item)
	if err != nil {
		return false, fmt.Errorf("remove bundle item: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ── Schedules ──

type Schedule struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CronExpr  string `json:"cron_expr"`
	Action    string `json:"action"` // say, command, shutdown
	Payload   string `json:"payload"`
	Enabled   bool   `json:"enabled"`
	LastRun   string `json:"last_run"`
	CreatedAt string `json:"created_at"`
}

func (s *Store) CreateSchedule(sc Schedule) error {
	_, err := s.db.Exec(`
		INSERT INTO schedules (id, name, cron_expr, action, payload, enabled)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.Name, sc.CronExpr, sc.Action, sc.Payload, boolToInt(sc.Enabled))
	if err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

func (s *Store) ListSchedules() ([]Schedule, error) {
	rows, err := s.db.Query(`
		SELECT id, name, cron_expr, action, payload, enabled, COALESCE(last_run, ''), created_at
		FROM schedules ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	schedules := []Schedule{}
	for rows.Next() {
		var sc Schedule
		var enabled int
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.CronExpr, &sc.Action, &sc.Payload, &enabled, &sc.LastRun, &sc.CreatedAt); err != nil {
			return nil, err
		}
		sc.Enabled = enabled == 1
		schedules = append(schedules, sc)
	}
	return schedules, rows.Err()
}

func (s *Store) SetScheduleEnabled(id string, enabled bool) (bool, error) {
	res, err := s.db.Exec("UPDATE schedules SET enabled = ? WHERE id = ?", boolToInt(enabled), id)
	if err != nil {
		return false, fmt.Errorf("update schedule: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) DeleteSchedule(id string) (bool, error) {
	res, err := s.db.Exec("DELETE FROM schedules WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete schedule: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) MarkScheduleRun(id string, at time.Time) error {
	_, err := s.db.Exec("UPDATE schedules SET last_run = ? WHERE id = ?", at.UTC(), id)
	return err
}

// ── Snapshots ──

type Snapshot struct {
	ID            int64     `json:"id"`
	GameDay       int       `json:"game_day"`
	GameHour      int       `json:"game_hour"`
	GameMinute    int       `json:"game_minute"`
	PlayersOnline int       `json:"players_online"`
	RecordedAt    time.Time `json:"recorded_at"`
}

func (s *Store) RecordSnapshot(snap Snapshot) error {
	_, err := s.db.Exec(`
		INSERT INTO snapshots (game_day, game_hour, game_minute, players_online)
		VALUES (?, ?, ?, ?)`,
		snap.GameDay, snap.GameHour, snap.GameMinute, snap.PlayersOnline)
	if err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}
	return nil
}

func (s *Store) RecentSnapshots(since time.Time) ([]Snapshot, error) {
	rows, err := s.db.Query(`
		SELECT id, game_day, game_hour, game_minute, players_online, recorded_at
		FROM snapshots WHERE recorded_at >= ? ORDER BY recorded_at ASC`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("recent snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []Snapshot{}
	for rows.Next() {
		var sn Snapshot
		if err := rows.Scan(&sn.ID, &sn.GameDay, &sn.GameHour, &sn.GameMinute, &sn.PlayersOnline, &sn.RecordedAt); err != nil {
			return nil, err
		}
		snaps = append(snaps, sn)
	}
	return snaps, rows.Err()
}

// PruneSnapshots deletes snapshots older than the retention window.
func (s *Store) PruneSnapshots(olderThan time.Time) error {
	_, err := s.db.Exec("DELETE FROM snapshots WHERE recorded_at < ?", olderThan.UTC())
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
