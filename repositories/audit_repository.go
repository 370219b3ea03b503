package repositories

import (
	"context"
	"database/sql"

	"github.com/solidjuls/twilight-struggle-backend/models"
)

// GameAuditRepository is the append-only compliance sink for pre-change
// game field values. Nothing in the rating computation reads it back.
type GameAuditRepository interface {
	Create(ctx context.Context, exec SQLExecutor, entry *models.GameAuditEntry) error
}

type postgresGameAuditRepository struct {
	db *sql.DB
}

func NewPostgresGameAuditRepository(db *sql.DB) GameAuditRepository {
	return &postgresGameAuditRepository{db: db}
}

func (r *postgresGameAuditRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresGameAuditRepository) Create(ctx context.Context, exec SQLExecutor, entry *models.GameAuditEntry) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO game_results_modified_log
			(game_id, logged_at, usa_player_id, ussr_player_id, tournament_id,
			 game_code, game_winner, end_turn, end_mode, game_date, video1, actor_email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	return executor.QueryRowContext(ctx, query,
		entry.GameID, entry.LoggedAt, entry.USAPlayerID, entry.USSRPlayerID, entry.TournamentID,
		entry.GameCode, entry.GameWinner, entry.EndTurn, entry.EndMode, entry.GameDate, entry.Video1, entry.ActorEmail,
	).Scan(&entry.ID)
}
