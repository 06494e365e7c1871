package game

// Adapter provides game-specific knowledge about a server's console dialect:
// how asynchronous log lines map to events and how to phrase and parse the
// handful of queries the tool depends on. Adding a grammar means adding an
// adapter (or a pattern inside one); the monitor's control flow never changes.
type Adapter interface {
	// Game returns the game identifier (e.g., "7dtd")
	Game() string

	// ParseLogLine extracts a structured event from a console line, or nil
	// when the line carries no event. Pure pattern matching, no I/O.
	ParseLogLine(line string) *Event

	// ListPlayersCommand returns the command that lists online players
	ListPlayersCommand() string

	// ParsePlayers extracts the player roster from a ListPlayersCommand reply
	ParsePlayers(response string) []Player

	// TimeCommand returns the command that reports in-game time
	TimeCommand() string

	// ParseTime extracts the in-game clock from a TimeCommand reply
	ParseTime(response string) (Clock, bool)

	// ShutdownCommand returns the graceful stop command for the server
	ShutdownCommand() string
}

// EventType classifies an asynchronous console line.
type EventType string

const (
	EventLogin  EventType = "login"
	EventLogout EventType = "logout"
	EventChat   EventType = "chat"
)

// Event is one classified console line.
type Event struct {
	Type    EventType
	Player  string
	Message string
}

// Player is one row of the online-player roster.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Clock is the in-game day and time of day.
type Clock struct {
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}
