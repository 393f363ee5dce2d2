package game

import "fmt"

// EventKind enumerates the closed set of game events.
type EventKind uint8

const (
	EvPhaseStart EventKind = iota
	EvPlayerFinished
	EvPhaseFinished
	EvExecuteVote
	EvMurderVote
	EvExecuted
	EvMurdered
	EvInvestigateResult
	EvPublishResult
	EvGameEnd
)

func (k EventKind) String() string {
	switch k {
	case EvPhaseStart:
		return "phase_start"
	case EvPlayerFinished:
		return "player_finished"
	case EvPhaseFinished:
		return "phase_finished"
	case EvExecuteVote:
		return "execute_vote"
	case EvMurderVote:
		return "murder_vote"
	case EvExecuted:
		return "executed"
	case EvMurdered:
		return "murdered"
	case EvInvestigateResult:
		return "investigate_result"
	case EvPublishResult:
		return "publish_result"
	case EvGameEnd:
		return "game_end"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

// Event is one game occurrence fanned out to subscribers. Only the fields
// relevant to the kind are set.
type Event struct {
	Kind      EventKind `json:"kind"`
	Name      string    `json:"name,omitempty"`
	Candidate string    `json:"candidate,omitempty"`
	Role      Role      `json:"role,omitempty"`
	Winner    Winner    `json:"winner,omitempty"`
}
