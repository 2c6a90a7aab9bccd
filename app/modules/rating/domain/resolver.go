package ratingdomain

import "fmt"

// OutcomeSet is the set of distinct per-army resolved outcomes observed
// within one team.
type OutcomeSet map[ResolvedOutcome]struct{}

func NewOutcomeSet(outcomes ...ResolvedOutcome) OutcomeSet {
	set := make(OutcomeSet, len(outcomes))
	for _, o := range outcomes {
		set[o] = struct{}{}
	}
	return set
}

func (s OutcomeSet) contains(o ResolvedOutcome) bool {
	_, ok := s[o]
	return ok
}

// ResolveTeams combines exactly two teams' resolved outcome sets into one
// GameOutcome per team.
//
// The policy is evaluated in strict order: a single victorious team beats
// everything; both teams claiming victory is irreconcilable; a draw needs
// both teams to agree; any remaining UNKNOWN or CONFLICTING army makes the
// match ambiguous; and a match where every army reported defeat (everyone
// disconnected) counts as a no-fault draw.
func ResolveTeams(teams []OutcomeSet) (GameOutcome, GameOutcome, error) {
	if len(teams) != 2 {
		return OutcomeUnknown, OutcomeUnknown,
			newResolutionError(fmt.Sprintf("expected exactly 2 teams, got %d", len(teams)))
	}
	teamA, teamB := teams[0], teams[1]

	aVictory := teamA.contains(ResolvedVictory)
	bVictory := teamB.contains(ResolvedVictory)
	switch {
	case aVictory && bVictory:
		return OutcomeUnknown, OutcomeUnknown, newResolutionError("both teams claimed victory")
	case aVictory:
		return OutcomeVictory, OutcomeDefeat, nil
	case bVictory:
		return OutcomeDefeat, OutcomeVictory, nil
	}

	aDraw := teamA.contains(ResolvedDraw)
	bDraw := teamB.contains(ResolvedDraw)
	switch {
	case aDraw && bDraw:
		return OutcomeDraw, OutcomeDraw, nil
	case aDraw || bDraw:
		return OutcomeUnknown, OutcomeUnknown, newResolutionError("unilateral draw")
	}

	for _, team := range teams {
		if team.contains(ResolvedUnknown) || team.contains(ResolvedConflicting) {
			return OutcomeUnknown, OutcomeUnknown, newResolutionError("ambiguous outcome")
		}
	}

	// Only DEFEAT remains on both sides: every player abandoned the match.
	// Treated as a no-fault draw rather than a loss for both.
	return OutcomeDraw, OutcomeDraw, nil
}
