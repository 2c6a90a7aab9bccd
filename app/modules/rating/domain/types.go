package ratingdomain

// PlayerID identifies a player account.
type PlayerID int64

// GameID identifies one match.
type GameID int64

// ArmyID identifies one side/participant slot within a match.
type ArmyID int

// RatingType names a leaderboard: an independent skill pool per player.
type RatingType string

const (
	// RatingTypeGlobal is the primary leaderboard. Every rated match on a
	// specialized leaderboard also adjusts the player's global rating.
	RatingTypeGlobal RatingType = "global"
	RatingTypeLadder RatingType = "ladder_1v1"
)

// Rating is a Gaussian skill estimate.
type Rating struct {
	Mean      float64
	Deviation float64
}

// RatingGroup maps each player on one team to their prior rating.
type RatingGroup map[PlayerID]Rating

// TeamSummary is one team's resolved outcome and roster.
type TeamSummary struct {
	Outcome GameOutcome
	Players []PlayerID
}

// RatingJob is the unit of work submitted to the rating worker queue for
// one finished, ratable match. Ownership transfers to the queue on enqueue;
// the job is never mutated afterwards.
type RatingJob struct {
	GameID     GameID
	RatingType RatingType
	Teams      []TeamSummary
}

// PlayerIDs returns every player referenced by the job, team order first.
func (j RatingJob) PlayerIDs() []PlayerID {
	var ids []PlayerID
	for _, team := range j.Teams {
		ids = append(ids, team.Players...)
	}
	return ids
}
