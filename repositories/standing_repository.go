package repositories

import (
	"context"
	"database/sql"

	"github.com/solidjuls/twilight-struggle-backend/models"
)

// StandingRepository reads the named standing buckets of a tournament and
// their member players. Standings themselves are computed, never stored.
type StandingRepository interface {
	ListPlayersByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.StandingPlayer, error)
}

type postgresStandingRepository struct {
	db *sql.DB
}

func NewPostgresStandingRepository(db *sql.DB) StandingRepository {
	return &postgresStandingRepository{db: db}
}

func (r *postgresStandingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresStandingRepository) ListPlayersByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.StandingPlayer, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT sp.user_id, s.standing_name, s.secondary_name,
		       u.first_name, u.last_name, c.tld_code
		FROM standings s
		JOIN standing_players sp ON sp.standing_id = s.id
		JOIN users u ON u.id = sp.user_id
		LEFT JOIN countries c ON c.id = u.country_id
		WHERE s.tournaments_id = $1
		ORDER BY sp.user_id ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := make([]*models.StandingPlayer, 0)
	for rows.Next() {
		var p models.StandingPlayer
		if err := rows.Scan(&p.UserID, &p.StandingName, &p.SecondaryName, &p.FirstName, &p.LastName, &p.CountryCode); err != nil {
			return nil, err
		}
		players = append(players, &p)
	}
	return players, rows.Err()
}
