package ratingevents

// RatingUpdateTopic is the routing key for rating-change events consumed by
// the statistics services and external APIs.
const RatingUpdateTopic = "success.rating.update"

// RatingUpdatePayload is published once per rated player per leaderboard
// pass.
type RatingUpdatePayload struct {
	GameID       int64   `json:"game_id"`
	PlayerID     int64   `json:"player_id"`
	RatingType   string  `json:"rating_type"`
	OldMean      float64 `json:"old_mean"`
	OldDeviation float64 `json:"old_deviation"`
	NewMean      float64 `json:"new_mean"`
	NewDeviation float64 `json:"new_deviation"`
	Outcome      string  `json:"outcome"`
}
