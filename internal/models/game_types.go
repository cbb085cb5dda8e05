package models

import "fmt"

// Group is one of the two mutually exclusive outcomes of a round. The numeric
// values match the contract's uint8 encoding.
type Group uint8

const (
	GroupNone Group = 0
	GroupA    Group = 1
	GroupB    Group = 2
)

func (g Group) Valid() bool {
	return g == GroupA || g == GroupB
}

func (g Group) Opposite() Group {
	switch g {
	case GroupA:
		return GroupB
	case GroupB:
		return GroupA
	default:
		return GroupNone
	}
}

func (g Group) String() string {
	switch g {
	case GroupA:
		return "A"
	case GroupB:
		return "B"
	default:
		return "none"
	}
}

func (g Group) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *Group) UnmarshalText(b []byte) error {
	switch string(b) {
	case "A", "a", "1":
		*g = GroupA
	case "B", "b", "2":
		*g = GroupB
	case "none", "", "0":
		*g = GroupNone
	default:
		return fmt.Errorf("invalid group: %s", b)
	}
	return nil
}

type GameType string

const (
	GameTypeSingle      GameType = "single"
	GameTypeElimination GameType = "elimination"
)

type GameState uint8

const (
	GameStateLobby      GameState = 0
	GameStateInProgress GameState = 1
	GameStateCompleted  GameState = 2
)

func (s GameState) String() string {
	switch s {
	case GameStateLobby:
		return "lobby"
	case GameStateInProgress:
		return "in_progress"
	case GameStateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}
