package sdtd

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/reedfamily/zedctl/internal/game"
)

func init() {
	game.Register(&Adapter{})
}

// Adapter implements the 7 Days to Die console dialect. The server's log
// format varies between versions, so logout and chat carry fallback patterns.
type Adapter struct{}

var (
	// "INF PlayerLogin: Revlin McAwesome/V 1.0"
	loginRe = regexp.MustCompile(`PlayerLogin:\s+([^/]+)`)
	// "INF RequestToEnterGame: EOS_.../Revlin McAwesome"
	enterRe = regexp.MustCompile(`RequestToEnterGame:.*?/(.+)`)

	// "INF Player disconnected: EntityID=171, PlayerID='...', OwnerID='...', PlayerName='Revlin McAwesome'"
	logoutQuotedRe = regexp.MustCompile(`PlayerName='([^']+)'`)
	logoutBareRe   = regexp.MustCompile(`PlayerName=([^,\s]+)`)
	logoutFallback = regexp.MustCompile(`Player disconnected:\s+([^,(]+)`)

	// "Chat (from '...', entity id '171'): 'Revlin': hello" and older
	// "Chat: Revlin: hello"
	chatQuotedRe = regexp.MustCompile(`Chat.*?'([^']+)':\s*(.+)`)
	chatBareRe   = regexp.MustCompile(`Chat.*?:\s*([^:]+):\s*(.+)`)

	// "0. id=171, Revlin McAwesome, pos=(-933.9, 76.1, 1757.7), ..."
	playerRowRe = regexp.MustCompile(`\d+\.\s+id=(\d+),\s+([^,]+),\s+pos=`)

	// "Day 7, 14:23"
	clockRe = regexp.MustCompile(`Day\s+(\d+),\s+(\d+):(\d+)`)
)

func (a *Adapter) Game() string { return "7dtd" }

// ParseLogLine classifies one console line. Precedence: login, logout, chat.
// Lines matching nothing are not events; the caller ignores them.
func (a *Adapter) ParseLogLine(line string) *game.Event {
	if strings.Contains(line, "PlayerLogin:") {
		if m := loginRe.FindStringSubmatch(line); m != nil {
			return &game.Event{Type: game.EventLogin, Player: strings.TrimSpace(m[1])}
		}
	}
	if strings.Contains(line, "RequestToEnterGame:") {
		if m := enterRe.FindStringSubmatch(line); m != nil {
			return &game.Event{Type: game.EventLogin, Player: strings.TrimSpace(m[1])}
		}
	}
	if strings.Contains(line, "Player disconnected") {
		m := logoutQuotedRe.FindStringSubmatch(line)
		if m == nil {
			m = logoutBareRe.FindStringSubmatch(line)
		}
		if m == nil {
			m = logoutFallback.FindStringSubmatch(line)
		}
		if m != nil {
			return &game.Event{Type: game.EventLogout, Player: strings.TrimSpace(m[1])}
		}
	}
	if strings.Contains(line, "Chat") {
		m := chatQuotedRe.FindStringSubmatch(line)
		if m == nil {
			m = chatBareRe.FindStringSubmatch(line)
		}
		if m != nil {
			return &game.Event{
				Type:    game.EventChat,
				Player:  strings.TrimSpace(m[1]),
				Message: strings.TrimSpace(m[2]),
			}
		}
	}
	return nil
}

func (a *Adapter) ListPlayersCommand() string { return "listplayers" }

func (a *Adapter) ParsePlayers(response string) []game.Player {
	var players []game.Player
	for _, line := range strings.Split(response, "\n") {
		if m := playerRowRe.FindStringSubmatch(line); m != nil {
			players = append(players, game.Player{
				ID:   m[1],
				Name: strings.TrimSpace(m[2]),
			})
		}
	}
	return players
}

func (a *Adapter) TimeCommand() string { return "gettime" }

func (a *Adapter) ParseTime(response string) (game.Clock, bool) {
	m := clockRe.FindStringSubmatch(response)
	if m == nil {
		return game.Clock{}, false
	}
	day, _ := strconv.Atoi(m[1])
	hour, _ := strconv.Atoi(m[2])
	minute, _ := strconv.Atoi(m[3])
	return game.Clock{Day: day, Hour: hour, Minute: minute}, true
}

func (a *Adapter) ShutdownCommand() string { return "shutdown" }
