package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/solidjuls/twilight-struggle-backend/models"
)

var ErrRatingSnapshotNotFound = errors.New("rating snapshot not found")

// RatingSnapshotRepository is the rating ledger. Snapshots are append-only
// for submissions; only the recompute cascade may delete them, and only by
// the game-id set it owns for the duration of its transaction.
type RatingSnapshotRepository interface {
	LatestByPlayer(ctx context.Context, exec SQLExecutor, playerID int64) (*models.RatingSnapshot, error)
	Create(ctx context.Context, exec SQLExecutor, snapshot *models.RatingSnapshot) error
	DeleteByGameIDs(ctx context.Context, exec SQLExecutor, gameIDs []int64) (int64, error)
	ListHistoryByPlayer(ctx context.Context, exec SQLExecutor, playerID int64) ([]*models.RatingHistoryEntry, error)
	ListLeaderboard(ctx context.Context, exec SQLExecutor, playerIDs []int64, limit, offset int) ([]*models.PlayerRating, int, error)
}

type postgresRatingSnapshotRepository struct {
	db *sql.DB
}

func NewPostgresRatingSnapshotRepository(db *sql.DB) RatingSnapshotRepository {
	return &postgresRatingSnapshotRepository{db: db}
}

func (r *postgresRatingSnapshotRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

// LatestByPlayer returns the most recent snapshot for a player, ordered by
// snapshot created_at. Replayed snapshots carry their game's created_at,
// which keeps this ordering aligned with the game timeline.
func (r *postgresRatingSnapshotRepository) LatestByPlayer(ctx context.Context, exec SQLExecutor, playerID int64) (*models.RatingSnapshot, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, player_id, game_result_id, rating, game_code, created_at, updated_at
		FROM ratings_history
		WHERE player_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	var s models.RatingSnapshot
	err := executor.QueryRowContext(ctx, query, playerID).Scan(
		&s.ID, &s.PlayerID, &s.GameResultID, &s.Rating, &s.GameCode, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRatingSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to scan latest snapshot for player %d: %w", playerID, err)
	}
	return &s, nil
}

func (r *postgresRatingSnapshotRepository) Create(ctx context.Context, exec SQLExecutor, snapshot *models.RatingSnapshot) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO ratings_history
			(player_id, game_result_id, rating, game_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	return executor.QueryRowContext(ctx, query,
		snapshot.PlayerID, snapshot.GameResultID, snapshot.Rating,
		snapshot.GameCode, snapshot.CreatedAt, snapshot.UpdatedAt,
	).Scan(&snapshot.ID)
}

func (r *postgresRatingSnapshotRepository) DeleteByGameIDs(ctx context.Context, exec SQLExecutor, gameIDs []int64) (int64, error) {
	if len(gameIDs) == 0 {
		return 0, nil
	}
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`DELETE FROM ratings_history WHERE game_result_id = ANY($1)`,
		pq.Array(gameIDs),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete snapshots for %d games: %w", len(gameIDs), err)
	}
	return result.RowsAffected()
}

func (r *postgresRatingSnapshotRepository) ListHistoryByPlayer(ctx context.Context, exec SQLExecutor, playerID int64) ([]*models.RatingHistoryEntry, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT
			gr.id,
			gr.game_date,
			rh.rating,
			CASE WHEN gr.usa_player_id = $1 THEN gr.usa_previous_rating ELSE gr.ussr_previous_rating END,
			CASE WHEN gr.usa_player_id = $1 THEN gr.ussr_player_id ELSE gr.usa_player_id END,
			gr.usa_player_id = $1
		FROM game_results gr
		JOIN ratings_history rh ON rh.game_result_id = gr.id AND rh.player_id = $1
		WHERE gr.usa_player_id = $1 OR gr.ussr_player_id = $1
		ORDER BY gr.created_at DESC, gr.id DESC`

	rows, err := executor.QueryContext(ctx, query, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*models.RatingHistoryEntry, 0)
	for rows.Next() {
		var e models.RatingHistoryEntry
		if err := rows.Scan(&e.GameID, &e.Date, &e.CurrentRating, &e.PreviousRating, &e.OpponentID, &e.IsUSAGame); err != nil {
			return nil, err
		}
		e.RatingChange = e.CurrentRating - e.PreviousRating
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// ListLeaderboard ranks players by their latest snapshot. An optional id
// set narrows the board; the second return value is the total row count
// before pagination.
func (r *postgresRatingSnapshotRepository) ListLeaderboard(ctx context.Context, exec SQLExecutor, playerIDs []int64, limit, offset int) ([]*models.PlayerRating, int, error) {
	executor := r.getExecutor(exec)
	query := `
		WITH latest AS (
			SELECT DISTINCT ON (player_id) player_id, rating
			FROM ratings_history
			ORDER BY player_id, created_at DESC, id DESC
		)
		SELECT
			l.player_id,
			RANK() OVER (ORDER BY l.rating DESC, l.player_id ASC),
			u.first_name,
			u.last_name,
			COALESCE(c.tld_code, ''),
			l.rating,
			COUNT(*) OVER ()
		FROM latest l
		JOIN users u ON u.id = l.player_id
		LEFT JOIN countries c ON c.id = u.country_id
		WHERE $1::bigint[] IS NULL OR l.player_id = ANY($1)
		ORDER BY l.rating DESC, l.player_id ASC
		LIMIT $2 OFFSET $3`

	var idsArg interface{}
	if len(playerIDs) > 0 {
		idsArg = pq.Array(playerIDs)
	}

	rows, err := executor.QueryContext(ctx, query, idsArg, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	ratings := make([]*models.PlayerRating, 0)
	total := 0
	for rows.Next() {
		var pr models.PlayerRating
		if err := rows.Scan(&pr.PlayerID, &pr.Rank, &pr.FirstName, &pr.LastName, &pr.CountryCode, &pr.Rating, &total); err != nil {
			return nil, 0, err
		}
		ratings = append(ratings, &pr)
	}
	return ratings, total, rows.Err()
}
