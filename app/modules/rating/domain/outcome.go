package ratingdomain

import "fmt"

// ReportedOutcome is what a single reporter claims happened to one army.
// Reports from different clients are not required to agree.
type ReportedOutcome int

const (
	ReportedVictory ReportedOutcome = iota
	ReportedDefeat
	ReportedDraw
	ReportedMutualDraw
)

func (o ReportedOutcome) String() string {
	switch o {
	case ReportedVictory:
		return "VICTORY"
	case ReportedDefeat:
		return "DEFEAT"
	case ReportedDraw:
		return "DRAW"
	case ReportedMutualDraw:
		return "MUTUAL_DRAW"
	default:
		return fmt.Sprintf("ReportedOutcome(%d)", int(o))
	}
}

// Resolved folds the reported claim into the value space used for voting.
// MUTUAL_DRAW counts as an ordinary draw claim once votes are tallied.
func (o ReportedOutcome) Resolved() ResolvedOutcome {
	switch o {
	case ReportedVictory:
		return ResolvedVictory
	case ReportedDefeat:
		return ResolvedDefeat
	case ReportedDraw, ReportedMutualDraw:
		return ResolvedDraw
	default:
		return ResolvedUnknown
	}
}

// ResolvedOutcome is the aggregator's derived truth for one army.
//
// The ordinal order of the constants is load-bearing: it is the
// deterministic tiebreak used when two outcomes receive the same number of
// votes.
type ResolvedOutcome int

const (
	ResolvedVictory ResolvedOutcome = iota
	ResolvedDefeat
	ResolvedDraw
	// ResolvedUnknown means no reports were filed for the army.
	ResolvedUnknown
	// ResolvedConflicting means reports disagree beyond the voting
	// thresholds.
	ResolvedConflicting
)

func (o ResolvedOutcome) String() string {
	switch o {
	case ResolvedVictory:
		return "VICTORY"
	case ResolvedDefeat:
		return "DEFEAT"
	case ResolvedDraw:
		return "DRAW"
	case ResolvedUnknown:
		return "UNKNOWN"
	case ResolvedConflicting:
		return "CONFLICTING"
	default:
		return fmt.Sprintf("ResolvedOutcome(%d)", int(o))
	}
}

// GameOutcome is the final match-level outcome assigned to one team, and
// transitively to every player on it.
type GameOutcome int

const (
	OutcomeUnknown GameOutcome = iota
	OutcomeVictory
	OutcomeDefeat
	OutcomeDraw
)

func (o GameOutcome) String() string {
	switch o {
	case OutcomeVictory:
		return "VICTORY"
	case OutcomeDefeat:
		return "DEFEAT"
	case OutcomeDraw:
		return "DRAW"
	case OutcomeUnknown:
		return "UNKNOWN"
	default:
		return fmt.Sprintf("GameOutcome(%d)", int(o))
	}
}
