package game

// Voting is one phase's majority vote. The electorate is fixed at
// construction; each voter holds at most one vote, last write wins, and an
// empty candidate records an abstention.
type Voting struct {
	electorate int
	votes      map[string]string
	order      []string // voters in first-vote submission order
}

// NewVoting starts a vote among the given eligible voters.
func NewVoting(voters []string) *Voting {
	return &Voting{
		electorate: len(voters),
		votes:      make(map[string]string, len(voters)),
	}
}

// Vote casts or overwrites voter's vote. A re-vote keeps the voter's original
// position in the tally order, so the outcome stays deterministic.
func (v *Voting) Vote(voter, candidate string) {
	if _, voted := v.votes[voter]; !voted {
		v.order = append(v.order, voter)
	}
	v.votes[voter] = candidate
}

// MajorityThreshold is the strict-majority bar: floor(n/2)+1.
func MajorityThreshold(n int) int {
	return n/2 + 1
}

// Winner tallies the current vote map in submission order and returns the
// first candidate whose running count reaches the majority threshold. If no
// candidate ever reaches it there is no winner.
func (v *Voting) Winner() (string, bool) {
	majority := MajorityThreshold(v.electorate)
	counts := make(map[string]int, len(v.votes))
	for _, voter := range v.order {
		candidate := v.votes[voter]
		if candidate == "" {
			continue
		}
		counts[candidate]++
		if counts[candidate] >= majority {
			return candidate, true
		}
	}
	return "", false
}
