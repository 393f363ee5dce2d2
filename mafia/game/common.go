package game

import "fmt"

// Phase is the current half of the day/night cycle.
type Phase uint8

const (
	Day Phase = iota
	Night
)

func (p Phase) String() string {
	switch p {
	case Day:
		return "day"
	case Night:
		return "night"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Role is a player's hidden faction, fixed for the whole game.
type Role uint8

const (
	Civilian Role = iota
	Mafia
	Commissar
)

func (r Role) String() string {
	switch r {
	case Civilian:
		return "civilian"
	case Mafia:
		return "mafia"
	case Commissar:
		return "commissar"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Winner is the outcome of a finished game.
type Winner uint8

const (
	WinnerNone Winner = iota
	WinnerCivilians
	WinnerMafia
)

func (w Winner) String() string {
	switch w {
	case WinnerNone:
		return "none"
	case WinnerCivilians:
		return "civilians"
	case WinnerMafia:
		return "mafia"
	default:
		return fmt.Sprintf("winner(%d)", uint8(w))
	}
}

// RejectedError is a failed command legality check. It is recoverable: the
// reason travels back to the player and no state is mutated.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return e.Reason
}
