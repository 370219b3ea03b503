package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"time"

	"github.com/lib/pq"
	"github.com/solidjuls/twilight-struggle-backend/models"
)

var (
	ErrGameNotFound          = errors.New("game result not found")
	ErrGamePlayerInvalid     = errors.New("game result player conflict or invalid")
	ErrGameTournamentInvalid = errors.New("game result tournament conflict or invalid")
)

type GameResultRepository interface {
	Create(ctx context.Context, exec SQLExecutor, game *models.GameResult) error
	GetByID(ctx context.Context, exec SQLExecutor, id int64) (*models.GameResult, error)
	// ListAffectedSince returns every game with created_at >= since across
	// all players and tournaments, ordered by created_at asc with id as
	// tie-break. This is the affected suffix of the global ladder timeline.
	ListAffectedSince(ctx context.Context, exec SQLExecutor, since time.Time) ([]*models.GameResult, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.GameResult, error)
	Update(ctx context.Context, exec SQLExecutor, game *models.GameResult) error
	UpdateMetadata(ctx context.Context, exec SQLExecutor, game *models.GameResult) error
	UpdatePreviousRatings(ctx context.Context, exec SQLExecutor, id int64, usaPrevious, ussrPrevious int) error
	UpdateEvidenceURL(ctx context.Context, exec SQLExecutor, id int64, url string) error
	Delete(ctx context.Context, exec SQLExecutor, id int64) error
}

type postgresGameResultRepository struct {
	db *sql.DB
}

func NewPostgresGameResultRepository(db *sql.DB) GameResultRepository {
	return &postgresGameResultRepository{db: db}
}

func (r *postgresGameResultRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const gameResultColumns = `
	id, created_at, updated_at, usa_player_id, ussr_player_id,
	usa_previous_rating, ussr_previous_rating, tournament_id, game_code,
	reported_at, game_winner, end_turn, end_mode, game_date, video1, reporter_id`

func (r *postgresGameResultRepository) scanGame(rowScanner interface{ Scan(...interface{}) error }) (*models.GameResult, error) {
	var g models.GameResult
	err := rowScanner.Scan(
		&g.ID, &g.CreatedAt, &g.UpdatedAt, &g.USAPlayerID, &g.USSRPlayerID,
		&g.USAPreviousRating, &g.USSRPreviousRating, &g.TournamentID, &g.GameCode,
		&g.ReportedAt, &g.GameWinner, &g.EndTurn, &g.EndMode, &g.GameDate, &g.Video1, &g.ReporterID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (r *postgresGameResultRepository) Create(ctx context.Context, exec SQLExecutor, game *models.GameResult) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO game_results
			(created_at, updated_at, usa_player_id, ussr_player_id,
			 usa_previous_rating, ussr_previous_rating, tournament_id, game_code,
			 reported_at, game_winner, end_turn, end_mode, game_date, video1, reporter_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`

	err := executor.QueryRowContext(ctx, query,
		game.CreatedAt, game.UpdatedAt, game.USAPlayerID, game.USSRPlayerID,
		game.USAPreviousRating, game.USSRPreviousRating, game.TournamentID, game.GameCode,
		game.ReportedAt, game.GameWinner, game.EndTurn, game.EndMode, game.GameDate, game.Video1, game.ReporterID,
	).Scan(&game.ID)

	return r.handleGameError(err)
}

func (r *postgresGameResultRepository) GetByID(ctx context.Context, exec SQLExecutor, id int64) (*models.GameResult, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + gameResultColumns + ` FROM game_results WHERE id = $1`
	game, err := r.scanGame(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, ErrGameNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan game result by id %d: %w", id, err)
	}
	return game, nil
}

func (r *postgresGameResultRepository) ListAffectedSince(ctx context.Context, exec SQLExecutor, since time.Time) ([]*models.GameResult, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT ` + gameResultColumns + `
		FROM game_results
		WHERE created_at >= $1
		ORDER BY created_at ASC, id ASC`

	return r.listGames(ctx, executor, query, since)
}

func (r *postgresGameResultRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.GameResult, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT ` + gameResultColumns + `
		FROM game_results
		WHERE tournament_id = $1
		ORDER BY created_at ASC, id ASC`

	return r.listGames(ctx, executor, query, tournamentID)
}

func (r *postgresGameResultRepository) listGames(ctx context.Context, executor SQLExecutor, query string, args ...interface{}) ([]*models.GameResult, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	games := make([]*models.GameResult, 0)
	for rows.Next() {
		g, errScan := r.scanGame(rows)
		if errScan != nil {
			return nil, errScan
		}
		games = append(games, g)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return games, nil
}

func (r *postgresGameResultRepository) Update(ctx context.Context, exec SQLExecutor, game *models.GameResult) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE game_results SET
			updated_at = $1, usa_player_id = $2, ussr_player_id = $3,
			usa_previous_rating = $4, ussr_previous_rating = $5,
			tournament_id = $6, game_code = $7, game_winner = $8,
			end_turn = $9, end_mode = $10, video1 = $11, reporter_id = $12
		WHERE id = $13`

	result, err := executor.ExecContext(ctx, query,
		game.UpdatedAt, game.USAPlayerID, game.USSRPlayerID,
		game.USAPreviousRating, game.USSRPreviousRating,
		game.TournamentID, game.GameCode, game.GameWinner,
		game.EndTurn, game.EndMode, game.Video1, game.ReporterID,
		game.ID,
	)
	if err != nil {
		return r.handleGameError(err)
	}
	return checkAffectedRows(result, ErrGameNotFound)
}

// UpdateMetadata touches only the fields that never influence ratings.
func (r *postgresGameResultRepository) UpdateMetadata(ctx context.Context, exec SQLExecutor, game *models.GameResult) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE game_results SET
			updated_at = $1, game_code = $2, end_turn = $3, end_mode = $4,
			video1 = $5, reporter_id = $6, tournament_id = $7
		WHERE id = $8`

	result, err := executor.ExecContext(ctx, query,
		game.UpdatedAt, game.GameCode, game.EndTurn, game.EndMode,
		game.Video1, game.ReporterID, game.TournamentID, game.ID,
	)
	if err != nil {
		return r.handleGameError(err)
	}
	return checkAffectedRows(result, ErrGameNotFound)
}

func (r *postgresGameResultRepository) UpdatePreviousRatings(ctx context.Context, exec SQLExecutor, id int64, usaPrevious, ussrPrevious int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE game_results SET usa_previous_rating = $1, ussr_previous_rating = $2 WHERE id = $3`
	result, err := executor.ExecContext(ctx, query, usaPrevious, ussrPrevious, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrGameNotFound)
}

func (r *postgresGameResultRepository) UpdateEvidenceURL(ctx context.Context, exec SQLExecutor, id int64, url string) error {
	executor := r.getExecutor(exec)
	query := `UPDATE game_results SET video1 = $1, updated_at = NOW() WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, url, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrGameNotFound)
}

func (r *postgresGameResultRepository) Delete(ctx context.Context, exec SQLExecutor, id int64) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `DELETE FROM game_results WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrGameNotFound)
}

func (r *postgresGameResultRepository) handleGameError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		switch pqErr.Constraint {
		case "game_results_usa_player_id_fkey", "game_results_ussr_player_id_fkey", "game_results_reporter_id_fkey":
			return fmt.Errorf("%w: %s", ErrGamePlayerInvalid, pqErr.Constraint)
		case "game_results_tournament_id_fkey":
			return fmt.Errorf("%w: %s", ErrGameTournamentInvalid, pqErr.Constraint)
		}
	}
	return err
}
