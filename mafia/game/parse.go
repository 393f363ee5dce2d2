package game

import (
	"fmt"
	"math/rand"
	"strings"
)

// Text command parsing for the human-entered game surface. Unrecognized input
// returns an error and produces no command.

// randomTarget picks any living player other than the actor.
func randomTarget(actor string, players []string, rng *rand.Rand) (string, error) {
	var candidates []string
	for _, p := range players {
		if p != actor {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no players left to pick from")
	}
	return candidates[rng.Intn(len(candidates))], nil
}

// ParseDay parses one day-phase command line:
// finish, skip, random, execute <name>, publish <name>.
func ParseDay(actor, line string, players []string, rng *rand.Rand) (Command, error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "finish":
		return Command{Kind: CmdFinish, Actor: actor}, nil
	case line == "skip":
		return Command{Kind: CmdExecute, Actor: actor}, nil
	case line == "random":
		target, err := randomTarget(actor, players, rng)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CmdExecute, Actor: actor, Target: target}, nil
	case strings.HasPrefix(line, "execute "):
		return Command{Kind: CmdExecute, Actor: actor, Target: argOf(line, "execute ")}, nil
	case strings.HasPrefix(line, "publish "):
		return Command{Kind: CmdPublish, Actor: actor, Target: argOf(line, "publish ")}, nil
	default:
		return Command{}, fmt.Errorf("unrecognized command for day: %q", line)
	}
}

// ParseNight parses one night-phase command line:
// finish, skip, random, murder <name>, investigate <name>. The role decides
// what "random" means.
func ParseNight(actor, line string, role Role, players []string, rng *rand.Rand) (Command, error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "finish":
		return Command{Kind: CmdFinish, Actor: actor}, nil
	case line == "skip":
		return Command{Kind: CmdMurder, Actor: actor}, nil
	case line == "random":
		target, err := randomTarget(actor, players, rng)
		if err != nil {
			return Command{}, err
		}
		switch role {
		case Mafia:
			return Command{Kind: CmdMurder, Actor: actor, Target: target}, nil
		case Commissar:
			return Command{Kind: CmdInvestigate, Actor: actor, Target: target}, nil
		default:
			return Command{}, fmt.Errorf("unrecognized command for night: %q", line)
		}
	case strings.HasPrefix(line, "murder "):
		return Command{Kind: CmdMurder, Actor: actor, Target: argOf(line, "murder ")}, nil
	case strings.HasPrefix(line, "investigate "):
		return Command{Kind: CmdInvestigate, Actor: actor, Target: argOf(line, "investigate ")}, nil
	default:
		return Command{}, fmt.Errorf("unrecognized command for night: %q", line)
	}
}

func argOf(line, prefix string) string {
	return strings.TrimSpace(strings.TrimPrefix(line, prefix))
}
