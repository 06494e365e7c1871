package sdtd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reedfamily/zedctl/internal/game"
)

func TestParseLogLine(t *testing.T) {
	a := &Adapter{}

	tests := []struct {
		name string
		line string
		want *game.Event
	}{
		{
			name: "player login",
			line: "2026-08-20T19:04:01 1234.5 INF PlayerLogin: Revlin McAwesome/V 1.0",
			want: &game.Event{Type: game.EventLogin, Player: "Revlin McAwesome"},
		},
		{
			name: "request to enter game",
			line: "2026-08-20T19:04:02 1234.6 INF RequestToEnterGame: EOS_0002b5d970954af9/Revlin McAwesome",
			want: &game.Event{Type: game.EventLogin, Player: "Revlin McAwesome"},
		},
		{
			name: "logout with quoted name",
			line: "INF Player disconnected: EntityID=171, PlayerID='EOS_0002b5d9', OwnerID='EOS_0002b5d9', PlayerName='Revlin McAwesome'",
			want: &game.Event{Type: game.EventLogout, Player: "Revlin McAwesome"},
		},
		{
			name: "logout with bare name",
			line: "INF Player disconnected: EntityID=171, PlayerName=Revlin",
			want: &game.Event{Type: game.EventLogout, Player: "Revlin"},
		},
		{
			name: "logout fallback format",
			line: "INF Player disconnected: Revlin (connection lost)",
			want: &game.Event{Type: game.EventLogout, Player: "Revlin"},
		},
		{
			name: "chat with quoted sender",
			line: "INF Chat (from 'EOS_0002b5d9', entity id '171', to 'Global'): 'Revlin': anyone near the trader?",
			want: &game.Event{Type: game.EventChat, Player: "Revlin", Message: "anyone near the trader?"},
		},
		{
			name: "chat bare legacy format",
			line: "INF Chat: Revlin: hello",
			want: &game.Event{Type: game.EventChat, Player: "Revlin", Message: "hello"},
		},
		{
			name: "ordinary log line",
			line: "2026-08-20T19:04:05 1235.0 INF Time: 41.25m FPS: 38.12 Heap: 592.3MB",
			want: nil,
		},
		{
			name: "empty line",
			line: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.ParseLogLine(tt.line)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want.Type, got.Type)
			assert.Equal(t, tt.want.Player, got.Player)
			assert.Equal(t, tt.want.Message, got.Message)
		})
	}
}

func TestParsePlayers(t *testing.T) {
	a := &Adapter{}

	resp := "0. id=171, Revlin McAwesome, pos=(-933.9, 76.1, 1757.7), rot=(0.0, 90.0, 0.0), remote=True, health=92, deaths=3\n" +
		"1. id=208, Gravedigger, pos=(120.0, 61.0, -44.2), rot=(0.0, 0.0, 0.0), remote=True, health=100, deaths=0\n" +
		"Total of 2 in the game"

	players := a.ParsePlayers(resp)
	require.Len(t, players, 2)
	assert.Equal(t, game.Player{ID: "171", Name: "Revlin McAwesome"}, players[0])
	assert.Equal(t, game.Player{ID: "208", Name: "Gravedigger"}, players[1])
}

func TestParsePlayersEmpty(t *testing.T) {
	a := &Adapter{}
	assert.Empty(t, a.ParsePlayers("Total of 0 in the game"))
	assert.Empty(t, a.ParsePlayers(""))
}

func TestParseTime(t *testing.T) {
	a := &Adapter{}

	clock, ok := a.ParseTime("Day 7, 14:23")
	require.True(t, ok)
	assert.Equal(t, game.Clock{Day: 7, Hour: 14, Minute: 23}, clock)

	_, ok = a.ParseTime("gibberish")
	assert.False(t, ok)
}

func TestRegistered(t *testing.T) {
	require.NotNil(t, game.Get("7dtd"))
}
