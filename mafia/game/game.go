package game

import (
	"fmt"
	"math/rand"
)

// Roles returns the fixed role partition for n players: exactly one
// commissar, floor(n/3) mafia, the rest civilians.
func Roles(n int) []Role {
	roles := make([]Role, 0, n)
	roles = append(roles, Commissar)
	for i := 0; i < n/3; i++ {
		roles = append(roles, Mafia)
	}
	for len(roles) < n {
		roles = append(roles, Civilian)
	}
	return roles
}

// Game is the Mafia phase state machine. It is pure logic with no I/O and is
// not safe for concurrent use; the session bus serializes access per room.
type Game struct {
	players []string // living players, roster order
	roles   map[string]Role

	phase      Phase
	canExecute bool
	finished   map[string]struct{}
	voting     *Voting

	investigated      map[string]struct{}
	doneInvestigation bool

	dead     map[string]struct{}
	terminal bool
	winner   Winner
}

// New deals roles with a single shuffle of the fixed partition and starts the
// game at day, with execution voting disabled until the first night passed.
func New(players []string, rng *rand.Rand) *Game {
	roles := Roles(len(players))
	rng.Shuffle(len(roles), func(i, j int) {
		roles[i], roles[j] = roles[j], roles[i]
	})

	byName := make(map[string]Role, len(players))
	for i, p := range players {
		byName[p] = roles[i]
	}
	return NewWithRoles(players, byName)
}

// NewWithRoles starts a game with a caller-chosen role assignment.
func NewWithRoles(players []string, roles map[string]Role) *Game {
	g := &Game{
		players:      append([]string(nil), players...),
		roles:        roles,
		phase:        Day,
		canExecute:   false,
		finished:     make(map[string]struct{}),
		investigated: make(map[string]struct{}),
		dead:         make(map[string]struct{}),
	}
	g.voting = NewVoting(g.players)
	return g
}

// Players returns the living players in roster order.
func (g *Game) Players() []string {
	return append([]string(nil), g.players...)
}

// Phase returns the current phase.
func (g *Game) Phase() Phase {
	return g.phase
}

// Terminal reports whether the game has ended.
func (g *Game) Terminal() bool {
	return g.terminal
}

// Winner returns the game outcome, WinnerNone while undecided.
func (g *Game) Winner() Winner {
	return g.winner
}

// Role returns the player's assigned role.
func (g *Game) Role(player string) (Role, error) {
	role, ok := g.roles[player]
	if !ok {
		return Civilian, fmt.Errorf("unknown player: %q", player)
	}
	return role, nil
}

// IsRole reports whether the player holds the role.
func (g *Game) IsRole(player string, role Role) bool {
	return g.roles[player] == role
}

// PlayersByRole returns the living players holding the role, roster order.
func (g *Game) PlayersByRole(role Role) []string {
	var out []string
	for _, p := range g.players {
		if g.roles[p] == role {
			out = append(out, p)
		}
	}
	return out
}

func (g *Game) isDead(player string) bool {
	_, dead := g.dead[player]
	return dead
}

func (g *Game) isAlive(player string) bool {
	for _, p := range g.players {
		if p == player {
			return true
		}
	}
	return false
}

// IsAllowed runs the legality checks for a command submitted through the
// given phase's channel. The first failing check wins; the returned reason is
// exactly what the player sees.
func (g *Game) IsAllowed(actor string, cmd Command, phase Phase) (bool, string) {
	if g.terminal {
		return false, "The game is already finished"
	}
	if phase != g.phase {
		return false, "Wrong phase"
	}
	if g.isDead(actor) {
		return false, "You are dead!"
	}
	if _, done := g.finished[actor]; done {
		return false, "This phase is already finished for you"
	}

	switch cmd.Kind {
	case CmdFinish:
		return true, ""

	case CmdInvestigate:
		if !g.IsRole(actor, Commissar) {
			return false, "You are not allowed to investigate since you are not commissar"
		}
		if g.phase != Night {
			return false, "You cannot investigate since it is day"
		}
		if !g.isAlive(cmd.Target) {
			return false, "You cannot investigate player that does not exist!"
		}
		if g.doneInvestigation {
			return false, "You cannot investigate since you already investigated this night"
		}
		return true, ""

	case CmdPublish:
		if !g.IsRole(actor, Commissar) {
			return false, "You are not allowed to publish information since you are not commissar"
		}
		if g.phase != Day {
			return false, "You cannot publish information since it is night"
		}
		if _, known := g.investigated[cmd.Target]; !known {
			return false, "You cannot publish information since you do not know his role"
		}
		if !g.IsRole(cmd.Target, Mafia) {
			return false, "You cannot publish information since this player is not mafia"
		}
		return true, ""

	case CmdExecute:
		if g.isDead(cmd.Target) {
			return false, "This person is already dead!"
		}
		if g.phase != Day {
			return false, "You cannot vote to execute person in the night"
		}
		if !g.canExecute {
			return false, "You cannot vote to execute person on the first day"
		}
		return true, ""

	case CmdMurder:
		if !g.IsRole(actor, Mafia) {
			return false, "You cannot vote for murder since you are not in mafia"
		}
		if g.phase != Night {
			return false, "You cannot vote for murder in the day"
		}
		if g.isDead(cmd.Target) {
			return false, "This person is already dead!"
		}
		return true, ""

	default:
		return false, fmt.Sprintf("Unknown command type: %d", cmd.Kind)
	}
}

// Apply mutates state for a legal command and returns the single event it
// produces. Legality must have been checked first.
func (g *Game) Apply(cmd Command) (Event, error) {
	switch cmd.Kind {
	case CmdFinish:
		g.finished[cmd.Actor] = struct{}{}
		return Event{Kind: EvPlayerFinished, Name: cmd.Actor}, nil

	case CmdInvestigate:
		g.investigated[cmd.Target] = struct{}{}
		g.doneInvestigation = true
		return Event{Kind: EvInvestigateResult, Name: cmd.Target, Role: g.roles[cmd.Target]}, nil

	case CmdPublish:
		return Event{Kind: EvPublishResult, Name: cmd.Target, Role: g.roles[cmd.Target]}, nil

	case CmdExecute:
		g.voting.Vote(cmd.Actor, cmd.Target)
		return Event{Kind: EvExecuteVote, Name: cmd.Actor, Candidate: cmd.Target}, nil

	case CmdMurder:
		g.voting.Vote(cmd.Actor, cmd.Target)
		return Event{Kind: EvMurderVote, Name: cmd.Actor, Candidate: cmd.Target}, nil

	default:
		return Event{}, fmt.Errorf("unknown command type: %d", cmd.Kind)
	}
}

// PhaseFinished reports whether every living, non-exempt player has finished
// the current phase.
func (g *Game) PhaseFinished() bool {
	return len(g.finished) == len(g.players)
}

// FinishPhase closes the current phase: resolve the vote, flip the phase,
// reset per-phase bookkeeping, then evaluate the win condition. Events come
// back in resolution order.
func (g *Game) FinishPhase() []Event {
	var events []Event

	if g.phase == Day {
		if victim, ok := g.voting.Winner(); ok {
			role := g.roles[victim]
			g.kill(victim)
			events = append(events, Event{Kind: EvExecuted, Name: victim, Role: role})
		}
		g.phase = Night
		// Civilians have nothing to do at night.
		g.finished = make(map[string]struct{})
		for _, p := range g.PlayersByRole(Civilian) {
			g.finished[p] = struct{}{}
		}
		g.voting = NewVoting(g.PlayersByRole(Mafia))
	} else {
		if victim, ok := g.voting.Winner(); ok {
			role := g.roles[victim]
			g.kill(victim)
			events = append(events, Event{Kind: EvMurdered, Name: victim, Role: role})
		}
		g.phase = Day
		g.finished = make(map[string]struct{})
		g.doneInvestigation = false
		g.canExecute = true
		g.voting = NewVoting(g.players)
	}

	winner := g.evaluateWinner()
	if winner == WinnerNone {
		events = append(events, Event{Kind: EvPhaseFinished})
	} else {
		g.terminal = true
		g.winner = winner
		events = append(events, Event{Kind: EvGameEnd, Winner: winner})
	}
	return events
}

func (g *Game) evaluateWinner() Winner {
	mafia := len(g.PlayersByRole(Mafia))
	if mafia == 0 {
		return WinnerCivilians
	}
	civilians := len(g.PlayersByRole(Civilian)) + len(g.PlayersByRole(Commissar))
	if civilians <= mafia {
		return WinnerMafia
	}
	return WinnerNone
}

func (g *Game) kill(player string) {
	g.dead[player] = struct{}{}
	for i, p := range g.players {
		if p == player {
			g.players = append(g.players[:i], g.players[i+1:]...)
			break
		}
	}
}
