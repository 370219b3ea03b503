package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/solidjuls/twilight-struggle-backend/models"
	"github.com/solidjuls/twilight-struggle-backend/rating"
	"github.com/solidjuls/twilight-struggle-backend/repositories"
)

// CalculatedRatings carries both the pre-game ratings (written to the
// game row as previous ratings) and the post-game ratings (written to the
// ledger as snapshots).
type CalculatedRatings struct {
	USARating     int
	USSRRating    int
	NewUSARating  int
	NewUSSRRating int
}

type RatingService interface {
	// CurrentRating resolves a player's rating as of the latest snapshot,
	// or the baseline when no snapshot exists. When exec is a transaction
	// the read observes that transaction's view of the ledger.
	CurrentRating(ctx context.Context, exec repositories.SQLExecutor, playerID int64) (int, error)
	CalculateRating(ctx context.Context, exec repositories.SQLExecutor, usaPlayerID, ussrPlayerID int64, winner models.GameWinner, tournamentID int) (*CalculatedRatings, error)
	Leaderboard(ctx context.Context, playerIDs []int64, page, pageSize int) ([]*models.PlayerRating, int, error)
	History(ctx context.Context, playerID int64) ([]*models.RatingHistoryEntry, error)
}

type ratingService struct {
	snapshotRepo repositories.RatingSnapshotRepository
}

func NewRatingService(snapshotRepo repositories.RatingSnapshotRepository) RatingService {
	return &ratingService{snapshotRepo: snapshotRepo}
}

func (s *ratingService) CurrentRating(ctx context.Context, exec repositories.SQLExecutor, playerID int64) (int, error) {
	snapshot, err := s.snapshotRepo.LatestByPlayer(ctx, exec, playerID)
	if err != nil {
		if errors.Is(err, repositories.ErrRatingSnapshotNotFound) {
			return rating.Baseline, nil
		}
		return 0, fmt.Errorf("failed to read current rating for player %d: %w", playerID, err)
	}
	return snapshot.Rating, nil
}

func (s *ratingService) CalculateRating(ctx context.Context, exec repositories.SQLExecutor, usaPlayerID, ussrPlayerID int64, winner models.GameWinner, tournamentID int) (*CalculatedRatings, error) {
	if !winner.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGameWinner, winner)
	}

	usaRating, err := s.CurrentRating(ctx, exec, usaPlayerID)
	if err != nil {
		return nil, err
	}
	ussrRating, err := s.CurrentRating(ctx, exec, ussrPlayerID)
	if err != nil {
		return nil, err
	}

	newUSA, newUSSR := rating.ApplyOutcome(usaRating, ussrRating, winner, tournamentID)

	return &CalculatedRatings{
		USARating:     usaRating,
		USSRRating:    ussrRating,
		NewUSARating:  newUSA,
		NewUSSRRating: newUSSR,
	}, nil
}

func (s *ratingService) Leaderboard(ctx context.Context, playerIDs []int64, page, pageSize int) ([]*models.PlayerRating, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize
	return s.snapshotRepo.ListLeaderboard(ctx, nil, playerIDs, pageSize, offset)
}

func (s *ratingService) History(ctx context.Context, playerID int64) ([]*models.RatingHistoryEntry, error) {
	return s.snapshotRepo.ListHistoryByPlayer(ctx, nil, playerID)
}
