package game

import "fmt"

// CommandKind enumerates the closed set of player commands.
type CommandKind uint8

const (
	CmdFinish CommandKind = iota
	CmdInvestigate
	CmdPublish
	CmdExecute
	CmdMurder
)

func (k CommandKind) String() string {
	switch k {
	case CmdFinish:
		return "finish"
	case CmdInvestigate:
		return "investigate"
	case CmdPublish:
		return "publish"
	case CmdExecute:
		return "execute"
	case CmdMurder:
		return "murder"
	default:
		return fmt.Sprintf("command(%d)", uint8(k))
	}
}

// Command is one submitted player action. Target is empty for FINISH and for
// vote abstentions.
type Command struct {
	Kind   CommandKind
	Actor  string
	Target string
}
