package ratingservice

import (
	"fmt"
	"sort"

	"github.com/intinig/go-openskill/rating"
	"github.com/intinig/go-openskill/types"

	ratingdomain "github.com/FAForever/rating-server/app/modules/rating/domain"
)

// Prior used for players with no rating on any leaderboard, on the classic
// TrueSkill scale mean=1500, deviation=500.
const (
	DefaultMean      = 1500.0
	DefaultDeviation = 500.0

	skillBeta = DefaultDeviation / 2
	skillTau  = DefaultDeviation / 100
)

// CalculateRatings maps a resolved two-team result plus each player's prior
// rating onto new ratings and a per-player outcome.
//
// The Bayesian team-rating update itself is delegated to go-openskill; the
// contract relied on here is that it is deterministic for identical inputs
// and moves winners' means up and losers' means down, faster for players
// with larger prior deviation.
func CalculateRatings(
	groups []ratingdomain.RatingGroup,
	outcomes []ratingdomain.GameOutcome,
) (map[ratingdomain.PlayerID]ratingdomain.Rating, map[ratingdomain.PlayerID]ratingdomain.GameOutcome, error) {
	if len(groups) != 2 || len(outcomes) != 2 {
		return nil, nil, newRatingError(fmt.Sprintf("expected exactly 2 teams, got %d", len(groups)))
	}

	ranks, err := ranksFromOutcomes(outcomes)
	if err != nil {
		return nil, nil, err
	}

	// Deterministic player order per team so the primitive sees a stable
	// input for identical jobs.
	order := make([][]ratingdomain.PlayerID, len(groups))
	teams := make([]types.Team, len(groups))
	for i, group := range groups {
		ids := make([]ratingdomain.PlayerID, 0, len(group))
		for id := range group {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
		order[i] = ids

		team := make(types.Team, 0, len(ids))
		for _, id := range ids {
			prior := group[id]
			team = append(team, types.Rating{Mu: prior.Mean, Sigma: prior.Deviation, Z: 3})
		}
		teams[i] = team
	}

	// openskill scores are higher-is-better; rank 0 is the winner.
	scores := []int{1 - ranks[0], 1 - ranks[1]}
	rated := rating.Rate(teams, &types.OpenSkillOptions{
		Mu:    float64Ptr(DefaultMean),
		Sigma: float64Ptr(DefaultDeviation),
		Beta:  float64Ptr(skillBeta),
		Tau:   float64Ptr(skillTau),
		Score: scores,
	})

	newRatings := make(map[ratingdomain.PlayerID]ratingdomain.Rating)
	playerOutcomes := make(map[ratingdomain.PlayerID]ratingdomain.GameOutcome)
	for i, ids := range order {
		for j, id := range ids {
			newRatings[id] = ratingdomain.Rating{
				Mean:      rated[i][j].Mu,
				Deviation: rated[i][j].Sigma,
			}
			playerOutcomes[id] = outcomes[i]
		}
	}
	return newRatings, playerOutcomes, nil
}

// ranksFromOutcomes derives the integer rank list for the two teams using
// the same precedence as outcome resolution: a single victory beats
// everything, both-draw and both-defeat map to a tie, everything else is too
// ambiguous to rate. The resolver should have caught ambiguity already, but
// the calculator does not trust that blindly.
func ranksFromOutcomes(outcomes []ratingdomain.GameOutcome) ([]int, error) {
	a, b := outcomes[0], outcomes[1]
	switch {
	case a == ratingdomain.OutcomeVictory && b == ratingdomain.OutcomeVictory:
		return nil, newRatingError("both teams victorious")
	case a == ratingdomain.OutcomeVictory:
		return []int{0, 1}, nil
	case b == ratingdomain.OutcomeVictory:
		return []int{1, 0}, nil
	case a == ratingdomain.OutcomeDraw && b == ratingdomain.OutcomeDraw:
		return []int{0, 0}, nil
	case a == ratingdomain.OutcomeDefeat && b == ratingdomain.OutcomeDefeat:
		return []int{0, 0}, nil
	default:
		return nil, newRatingError(fmt.Sprintf("ambiguous team outcomes %s vs %s", a, b))
	}
}

func float64Ptr(v float64) *float64 { return &v }
