package models

import "time"

// RatingSnapshot is the rating a player held after one game was applied,
// one row per (game, player). Snapshots are append-only: the recompute
// cascade deletes and recreates them but never updates a row in place.
type RatingSnapshot struct {
	ID           int64     `json:"id"`
	PlayerID     int64     `json:"player_id"`
	GameResultID int64     `json:"game_result_id"`
	Rating       int       `json:"rating"`
	GameCode     string    `json:"game_code"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RatingHistoryEntry is a read model for a player's rating trajectory.
type RatingHistoryEntry struct {
	GameID         int64     `json:"gameId"`
	Date           time.Time `json:"date"`
	CurrentRating  int       `json:"currentRating"`
	PreviousRating int       `json:"previousRating"`
	RatingChange   int       `json:"ratingChange"`
	OpponentID     int64     `json:"opponentId"`
	IsUSAGame      bool      `json:"isUsaGame"`
}

// PlayerRating is one row of the current-rating leaderboard.
type PlayerRating struct {
	PlayerID    int64  `json:"id"`
	Rank        int    `json:"rank"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	CountryCode string `json:"countryCode,omitempty"`
	Rating      int    `json:"rating"`
}
