package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, Migrate(database))
	return NewStore(database)
}

func TestAliasResolution(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SetAlias("Revlin McAwesome", "rev"))

	name, err := store.ResolveName("rev")
	require.NoError(t, err)
	assert.Equal(t, "Revlin McAwesome", name)

	// A full name resolves to itself.
	name, err = store.ResolveName("Revlin McAwesome")
	require.NoError(t, err)
	assert.Equal(t, "Revlin McAwesome", name)

	// Unknown names pass through.
	name, err = store.ResolveName("Stranger")
	require.NoError(t, err)
	assert.Equal(t, "Stranger", name)
}

func TestSetAliasUpdatesExisting(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SetAlias("Revlin McAwesome", "rev"))
	require.NoError(t, store.SetAlias("Revlin McAwesome", "rm"))

	aliases, err := store.ListAliases()
	require.NoError(t, err)
	require.Len(t, aliases, 1)
	assert.Equal(t, "rm", aliases[0].Alias)

	name, err := store.ResolveName("rev")
	require.NoError(t, err)
	assert.Equal(t, "rev", name, "replaced alias no longer resolves")
}

func TestRemoveAlias(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SetAlias("Revlin", "rev"))

	removed, err := store.RemoveAlias("rev")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.RemoveAlias("rev")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSessionAccounting(t *testing.T) {
	store := newTestStore(t)
	login := time.Date(2026, 8, 20, 19, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordLogin("Revlin", login))
	require.NoError(t, store.RecordLogout("Revlin", login.Add(time.Hour), time.Hour))

	sessions, err := store.RecentSessions("Revlin", 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.NotNil(t, sessions[0].DurationSeconds)
	assert.EqualValues(t, 3600, *sessions[0].DurationSeconds)
	require.NotNil(t, sessions[0].LogoutTime)
}

func TestRecordLoginClosesDanglingRow(t *testing.T) {
	store := newTestStore(t)
	first := time.Date(2026, 8, 20, 19, 0, 0, 0, time.UTC)

	// Login with no observed logout, then a second login.
	require.NoError(t, store.RecordLogin("Revlin", first))
	require.NoError(t, store.RecordLogin("Revlin", first.Add(2*time.Hour)))

	sessions, err := store.RecentSessions("Revlin", 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	// The older row was closed with zero duration; the newer one is open.
	assert.Nil(t, sessions[0].LogoutTime)
	require.NotNil(t, sessions[1].DurationSeconds)
	assert.EqualValues(t, 0, *sessions[1].DurationSeconds)
}

func TestRecordLogoutWithoutOpenRowIsNoop(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.RecordLogout("Ghost", time.Now(), time.Minute))

	sessions, err := store.RecentSessions("Ghost", 10)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestPlayerStats(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 8, 20, 19, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordLogin("Revlin", base))
	require.NoError(t, store.RecordLogout("Revlin", base.Add(time.Hour), time.Hour))
	require.NoError(t, store.RecordLogin("Revlin", base.Add(2*time.Hour)))
	require.NoError(t, store.RecordLogout("Revlin", base.Add(5*time.Hour), 3*time.Hour))

	st, err := store.PlayerStatsFor("Revlin")
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.TotalSessions)
	assert.EqualValues(t, 4*3600, st.TotalSeconds)
	assert.EqualValues(t, 2*3600, st.AverageSeconds)
	require.NotNil(t, st.LastSeen)
	assert.True(t, st.LastSeen.Equal(base.Add(2*time.Hour)), "last seen should be the newest login, got %v", st.LastSeen)
}

func TestPlayerStatsUnknownPlayer(t *testing.T) {
	store := newTestStore(t)
	_, err := store.PlayerStatsFor("Nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBundleLifecycle(t *testing.T) {
	store := newTestStore(t)

	created, err := store.CreateBundle("starter", "new player kit")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.CreateBundle("starter", "dupe")
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, store.AddBundleItem("starter", "gunPistol", 1, 3))
	require.NoError(t, store.AddBundleItem("starter", "ammo9mm", 100, 1))
	// Re-adding updates in place.
	require.NoError(t, store.AddBundleItem("starter", "ammo9mm", 200, 1))

	b, err := store.BundleByName("starter")
	require.NoError(t, err)
	require.Len(t, b.Items, 2)
	assert.Equal(t, BundleItem{ItemName: "ammo9mm", Quantity: 200, Quality: 1}, b.Items[0])

	summaries, err := store.ListBundles()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].ItemCount)

	removed, err := store.RemoveBundleItem("starter", "gunPistol")
	require.NoError(t, err)
	assert.True(t, removed)

	deleted, err := store.DeleteBundle("starter")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = store.BundleByName("starter")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddItemToMissingBundle(t *testing.T) {
	store := newTestStore(t)
	err := store.AddBundleItem("nope", "gunPistol", 1, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestScheduleLifecycle(t *testing.T) {
	store := newTestStore(t)

	sc := Schedule{
		ID:       "ab12cd34",
		Name:     "nightly restart warning",
		CronExpr: "0 4 * * *",
		Action:   "say",
		Payload:  "restarting in 10 minutes",
		Enabled:  true,
	}
	require.NoError(t, store.CreateSchedule(sc))

	schedules, err := store.ListSchedules()
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, sc.Name, schedules[0].Name)
	assert.True(t, schedules[0].Enabled)
	assert.Empty(t, schedules[0].LastRun)

	updated, err := store.SetScheduleEnabled(sc.ID, false)
	require.NoError(t, err)
	assert.True(t, updated)

	require.NoError(t, store.MarkScheduleRun(sc.ID, time.Now()))
	schedules, err = store.ListSchedules()
	require.NoError(t, err)
	assert.False(t, schedules[0].Enabled)
	assert.NotEmpty(t, schedules[0].LastRun)

	deleted, err := store.DeleteSchedule(sc.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	updated, err = store.SetScheduleEnabled(sc.ID, true)
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestSnapshotsRecordAndPrune(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.RecordSnapshot(Snapshot{GameDay: 7, GameHour: 14, GameMinute: 23, PlayersOnline: 3}))

	snaps, err := store.RecentSnapshots(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 7, snaps[0].GameDay)
	assert.Equal(t, 3, snaps[0].PlayersOnline)

	// Nothing is old enough to prune yet.
	require.NoError(t, store.PruneSnapshots(time.Now().Add(-time.Hour)))
	snaps, err = store.RecentSnapshots(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, snaps, 1)

	require.NoError(t, store.PruneSnapshots(time.Now().Add(time.Hour)))
	snaps, err = store.RecentSnapshots(time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, snaps)
}
