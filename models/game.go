package models

import "time"

type GameWinner string

// Winner codes follow the ladder's wire convention: side A (USA) is "1",
// side B (USSR) is "2", a tie is "3".
const (
	WinnerUSA  GameWinner = "1"
	WinnerUSSR GameWinner = "2"
	WinnerTie  GameWinner = "3"
)

func (w GameWinner) Valid() bool {
	switch w {
	case WinnerUSA, WinnerUSSR, WinnerTie:
		return true
	}
	return false
}

// GameResult is one reported game. Rows are immutable except through the
// recreate/delete flow; the global order of the ladder log is created_at
// ascending with id as tie-break, and nothing else.
type GameResult struct {
	ID                 int64      `json:"id"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	USAPlayerID        int64      `json:"usa_player_id"`
	USSRPlayerID       int64      `json:"ussr_player_id"`
	USAPreviousRating  int        `json:"usa_previous_rating"`
	USSRPreviousRating int        `json:"ussr_previous_rating"`
	TournamentID       int        `json:"tournament_id"`
	GameCode           string     `json:"game_code"`
	ReportedAt         time.Time  `json:"reported_at"`
	GameWinner         GameWinner `json:"game_winner"`
	EndTurn            *int       `json:"end_turn,omitempty"`
	EndMode            *string    `json:"end_mode,omitempty"`
	GameDate           time.Time  `json:"game_date"`
	Video1             *string    `json:"video1,omitempty"`
	ReporterID         *int64     `json:"reporter_id,omitempty"`
}

// GameAuditEntry preserves the full pre-change field values of a game that
// was recreated or deleted, plus the actor who triggered the change.
type GameAuditEntry struct {
	ID           int64      `json:"id"`
	GameID       int64      `json:"game_id"`
	LoggedAt     time.Time  `json:"logged_at"`
	USAPlayerID  int64      `json:"usa_player_id"`
	USSRPlayerID int64      `json:"ussr_player_id"`
	TournamentID int        `json:"tournament_id"`
	GameCode     string     `json:"game_code"`
	GameWinner   GameWinner `json:"game_winner"`
	EndTurn      *int       `json:"end_turn,omitempty"`
	EndMode      *string    `json:"end_mode,omitempty"`
	GameDate     time.Time  `json:"game_date"`
	Video1       *string    `json:"video1,omitempty"`
	ActorEmail   string     `json:"actor_email"`
}
