package models

// StandingPlayer is a player's membership in a named standing bucket of a
// tournament, joined with display details from the user collaborator.
type StandingPlayer struct {
	UserID        int64   `json:"user_id"`
	StandingName  string  `json:"standing_name"`
	SecondaryName *string `json:"secondary_name,omitempty"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	CountryCode   *string `json:"country_code,omitempty"`
}

// ForfeitStandingName tags entries synthesized for players who dropped out
// of their bucket but still have recorded games that must be counted.
const ForfeitStandingName = "Forfeited"

// StandingEntry is a computed, never persisted, per-player aggregate for
// one tournament.
type StandingEntry struct {
	UserID        int64   `json:"userId"`
	Name          string  `json:"name"`
	StandingName  string  `json:"standingName"`
	SecondaryName *string `json:"secondaryName,omitempty"`
	CountryCode   string  `json:"tldCode"`
	GamesWon      int     `json:"gamesWon"`
	GamesLost     int     `json:"gamesLost"`
	GamesTied     int     `json:"gamesTied"`
	WinRate       float64 `json:"winRate"`
	SoS           float64 `json:"sos"`
	Rank          int     `json:"rank"`

	// Opponent ids, one per game played (duplicates intended: a repeated
	// opponent weighs once per game in strength-of-schedule).
	Opponents []int64 `json:"-"`
}
