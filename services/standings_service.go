package services

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/solidjuls/twilight-struggle-backend/models"
	"github.com/solidjuls/twilight-struggle-backend/repositories"
)

type StandingsService interface {
	// ComputeStandings aggregates the whole game log of a tournament into
	// per-player standings. Nothing is persisted; every call recomputes
	// from scratch over a read-only view of the log.
	ComputeStandings(ctx context.Context, tournamentID int, division string) ([]*models.StandingEntry, error)
}

type standingsService struct {
	standingRepo repositories.StandingRepository
	gameRepo     repositories.GameResultRepository
	userRepo     repositories.UserRepository
}

func NewStandingsService(
	standingRepo repositories.StandingRepository,
	gameRepo repositories.GameResultRepository,
	userRepo repositories.UserRepository,
) StandingsService {
	return &standingsService{
		standingRepo: standingRepo,
		gameRepo:     gameRepo,
		userRepo:     userRepo,
	}
}

func (s *standingsService) ComputeStandings(ctx context.Context, tournamentID int, division string) ([]*models.StandingEntry, error) {
	if tournamentID <= 0 {
		return nil, ErrInvalidTournamentID
	}

	var (
		registered []*models.StandingPlayer
		games      []*models.GameResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		registered, err = s.standingRepo.ListPlayersByTournament(gctx, nil, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		games, err = s.gameRepo.ListByTournament(gctx, nil, tournamentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make(map[int64]*models.StandingEntry, len(registered))
	for _, p := range registered {
		entries[p.UserID] = &models.StandingEntry{
			UserID:        p.UserID,
			Name:          p.FirstName + " " + p.LastName,
			StandingName:  p.StandingName,
			SecondaryName: p.SecondaryName,
			CountryCode:   derefString(p.CountryCode),
			Opponents:     []int64{},
		}
	}

	for _, game := range games {
		usa := s.ensureEntry(ctx, entries, game.USAPlayerID)
		ussr := s.ensureEntry(ctx, entries, game.USSRPlayerID)

		usa.Opponents = append(usa.Opponents, ussr.UserID)
		ussr.Opponents = append(ussr.Opponents, usa.UserID)

		switch game.GameWinner {
		case models.WinnerUSA:
			usa.GamesWon++
			ussr.GamesLost++
		case models.WinnerUSSR:
			ussr.GamesWon++
			usa.GamesLost++
		case models.WinnerTie:
			usa.GamesTied++
			ussr.GamesTied++
		}
	}

	for _, e := range entries {
		total := e.GamesWon + e.GamesLost + e.GamesTied
		if total == 0 {
			continue
		}
		e.WinRate = (float64(e.GamesWon) + 0.5*float64(e.GamesTied)) / float64(total)
	}

	// Strength of schedule: mean of opponents' win rates, one term per
	// game played (repeated opponents intentionally weigh once per game).
	for _, e := range entries {
		if len(e.Opponents) == 0 {
			continue
		}
		sum := 0.0
		for _, opponentID := range e.Opponents {
			sum += entries[opponentID].WinRate
		}
		e.SoS = sum / float64(len(e.Opponents))
	}

	filtered := make([]*models.StandingEntry, 0, len(entries))
	for _, e := range entries {
		if division != "" && (e.SecondaryName == nil || *e.SecondaryName != division) {
			continue
		}
		filtered = append(filtered, e)
	}

	// Playoff order: win rate, then strength of schedule. Head-to-head is
	// a future extension point; equal pairs fall back to user id so the
	// ordering stays deterministic.
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].WinRate != filtered[j].WinRate {
			return filtered[i].WinRate > filtered[j].WinRate
		}
		if filtered[i].SoS != filtered[j].SoS {
			return filtered[i].SoS > filtered[j].SoS
		}
		return filtered[i].UserID < filtered[j].UserID
	})
	for i, e := range filtered {
		e.Rank = i + 1
	}

	return filtered, nil
}

// ensureEntry returns the player's entry, synthesizing a forfeit-bucket
// entry for players who dropped their bucket membership but still have
// recorded games. Those games must still count for their opponents.
func (s *standingsService) ensureEntry(ctx context.Context, entries map[int64]*models.StandingEntry, userID int64) *models.StandingEntry {
	if e, ok := entries[userID]; ok {
		return e
	}
	e := &models.StandingEntry{
		UserID:       userID,
		StandingName: models.ForfeitStandingName,
		Opponents:    []int64{},
	}
	if user, err := s.userRepo.GetByID(ctx, nil, userID); err == nil {
		e.Name = user.FullName()
		e.CountryCode = derefString(user.CountryCode)
	}
	entries[userID] = e
	return e
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
