package repositories

import (
	"context"
	"database/sql"
	"errors"
)

var ErrScheduleSlotNotFound = errors.New("schedule slot not found")

// ScheduleRepository covers only the engine's side of the scheduling
// contract: attaching a submitted game to its slot and clearing the link
// when that game is deleted. Slot creation and pairing live elsewhere.
type ScheduleRepository interface {
	LinkGameResult(ctx context.Context, exec SQLExecutor, slotID, gameResultID int64) error
	UnlinkGameResult(ctx context.Context, exec SQLExecutor, gameResultID int64) error
}

type postgresScheduleRepository struct {
	db *sql.DB
}

func NewPostgresScheduleRepository(db *sql.DB) ScheduleRepository {
	return &postgresScheduleRepository{db: db}
}

func (r *postgresScheduleRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresScheduleRepository) LinkGameResult(ctx context.Context, exec SQLExecutor, slotID, gameResultID int64) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE schedule SET game_results_id = $1 WHERE id = $2`,
		gameResultID, slotID,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrScheduleSlotNotFound)
}

// UnlinkGameResult clears every slot pointing at the game. Zero affected
// rows is fine: most games are reported without a scheduled slot.
func (r *postgresScheduleRepository) UnlinkGameResult(ctx context.Context, exec SQLExecutor, gameResultID int64) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx,
		`UPDATE schedule SET game_results_id = NULL WHERE game_results_id = $1`,
		gameResultID,
	)
	return err
}
