package models

import "time"

// ScheduleSlot is a scheduled matchup owned by the scheduling
// collaborator. The engine only links a submitted game result to its slot
// and clears the link when that game is deleted.
type ScheduleSlot struct {
	ID           int64     `json:"id"`
	TournamentID int       `json:"tournaments_id"`
	GameCode     string    `json:"game_code"`
	USAPlayerID  *int64    `json:"usa_player_id,omitempty"`
	USSRPlayerID *int64    `json:"ussr_player_id,omitempty"`
	DueDate      time.Time `json:"due_date"`
	GameResultID *int64    `json:"game_results_id,omitempty"`
}
