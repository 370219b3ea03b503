package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/solidjuls/twilight-struggle-backend/models"
	"github.com/solidjuls/twilight-struggle-backend/rating"
	"github.com/solidjuls/twilight-struggle-backend/repositories"
)

// replayGameCode marks snapshots rewritten by a recompute cascade, so a
// ledger inspection can tell them apart from first-report snapshots.
const replayGameCode = "recr"

// Broadcaster pushes a post-commit notification to live subscribers of a
// tournament room. Implemented by live.Hub; nil disables broadcasting.
type Broadcaster interface {
	BroadcastToRoom(roomID string, message interface{})
}

type SubmitGameInput struct {
	USAPlayerID  int64              `json:"usaPlayerId,string"`
	USSRPlayerID int64              `json:"ussrPlayerId,string"`
	GameWinner   models.GameWinner  `json:"gameWinner"`
	TournamentID int                `json:"tournamentId,string"`
	GameCode     string             `json:"gameCode"`
	EndTurn      *int               `json:"endTurn,omitempty"`
	EndMode      *string            `json:"endMode,omitempty"`
	Video1       *string            `json:"video1,omitempty"`
	ScheduleID   *int64             `json:"scheduleId,string,omitempty"`
	ReporterID   *int64             `json:"-"`
}

type RecreateGameInput struct {
	OldID int64 `json:"oldId,string"`
	// Op selects the operation: empty recreates, "delete" removes the game.
	Op string `json:"op,omitempty"`
	SubmitGameInput
}

type GameService interface {
	SubmitGame(ctx context.Context, input SubmitGameInput) (*models.GameResult, error)
	// RecreateGame edits or deletes an existing game and replays every
	// later game's ratings. A zero OldID degrades to a plain submission.
	RecreateGame(ctx context.Context, input RecreateGameInput, actorEmail string) (*models.GameResult, error)
	GetGame(ctx context.Context, id int64) (*models.GameResult, error)
	AttachEvidence(ctx context.Context, gameID int64, url string) error
}

type gameService struct {
	txManager     repositories.TxManager
	gameRepo      repositories.GameResultRepository
	snapshotRepo  repositories.RatingSnapshotRepository
	auditRepo     repositories.GameAuditRepository
	scheduleRepo  repositories.ScheduleRepository
	userRepo      repositories.UserRepository
	ratingService RatingService
	hub           Broadcaster
	logger        *slog.Logger

	// cascadeMu serializes recompute cascades. Affected sets are suffixes
	// of one global timeline, so any two cascades overlap and concurrent
	// replay would produce non-reproducible ratings.
	cascadeMu      sync.Mutex
	cascadeTimeout time.Duration

	now func() time.Time
}

func NewGameService(
	txManager repositories.TxManager,
	gameRepo repositories.GameResultRepository,
	snapshotRepo repositories.RatingSnapshotRepository,
	auditRepo repositories.GameAuditRepository,
	scheduleRepo repositories.ScheduleRepository,
	userRepo repositories.UserRepository,
	ratingService RatingService,
	hub Broadcaster,
	logger *slog.Logger,
	cascadeTimeout time.Duration,
) GameService {
	if logger == nil {
		logger = slog.Default()
	}
	if cascadeTimeout <= 0 {
		cascadeTimeout = 30 * time.Minute
	}
	return &gameService{
		txManager:      txManager,
		gameRepo:       gameRepo,
		snapshotRepo:   snapshotRepo,
		auditRepo:      auditRepo,
		scheduleRepo:   scheduleRepo,
		userRepo:       userRepo,
		ratingService:  ratingService,
		hub:            hub,
		logger:         logger,
		cascadeTimeout: cascadeTimeout,
		now:            time.Now,
	}
}

func (s *gameService) validateSubmitInput(ctx context.Context, input SubmitGameInput) error {
	if !input.GameWinner.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidGameWinner, input.GameWinner)
	}
	if input.USAPlayerID <= 0 || input.USSRPlayerID <= 0 {
		return ErrInvalidPlayerID
	}
	if input.USAPlayerID == input.USSRPlayerID {
		return ErrSamePlayer
	}
	if input.TournamentID <= 0 {
		return ErrInvalidTournamentID
	}

	for _, playerID := range []int64{input.USAPlayerID, input.USSRPlayerID} {
		if _, err := s.userRepo.GetByID(ctx, nil, playerID); err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return fmt.Errorf("%w: id %d", ErrPlayerNotFound, playerID)
			}
			return err
		}
	}
	return nil
}

func (s *gameService) SubmitGame(ctx context.Context, input SubmitGameInput) (*models.GameResult, error) {
	if err := s.validateSubmitInput(ctx, input); err != nil {
		return nil, err
	}

	dateNow := s.now()
	game := &models.GameResult{
		CreatedAt:    dateNow,
		UpdatedAt:    dateNow,
		USAPlayerID:  input.USAPlayerID,
		USSRPlayerID: input.USSRPlayerID,
		TournamentID: input.TournamentID,
		GameCode:     input.GameCode,
		ReportedAt:   dateNow,
		GameWinner:   input.GameWinner,
		EndTurn:      input.EndTurn,
		EndMode:      input.EndMode,
		GameDate:     dateNow,
		Video1:       input.Video1,
		ReporterID:   input.ReporterID,
	}

	err := s.txManager.WithinTransaction(ctx, nil, func(tx repositories.SQLExecutor) error {
		calc, err := s.ratingService.CalculateRating(ctx, tx,
			input.USAPlayerID, input.USSRPlayerID, input.GameWinner, input.TournamentID)
		if err != nil {
			return err
		}

		game.USAPreviousRating = calc.USARating
		game.USSRPreviousRating = calc.USSRRating

		if err := s.gameRepo.Create(ctx, tx, game); err != nil {
			return fmt.Errorf("failed to create game result: %w", err)
		}
		if err := s.writeSnapshotPair(ctx, tx, game, calc, input.GameCode, dateNow, dateNow); err != nil {
			return err
		}

		if input.ScheduleID != nil {
			if err := s.scheduleRepo.LinkGameResult(ctx, tx, *input.ScheduleID, game.ID); err != nil {
				if errors.Is(err, repositories.ErrScheduleSlotNotFound) {
					return fmt.Errorf("%w: id %d", ErrScheduleSlotNotFound, *input.ScheduleID)
				}
				return fmt.Errorf("failed to link schedule slot %d: %w", *input.ScheduleID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("game submitted",
		slog.Int64("game_id", game.ID),
		slog.Int64("usa_player_id", game.USAPlayerID),
		slog.Int64("ussr_player_id", game.USSRPlayerID),
		slog.String("winner", string(game.GameWinner)),
	)
	s.notifyTournament(game.TournamentID, "GAME_SUBMITTED", game.ID)

	return game, nil
}

func (s *gameService) GetGame(ctx context.Context, id int64) (*models.GameResult, error) {
	game, err := s.gameRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return game, nil
}

func (s *gameService) AttachEvidence(ctx context.Context, gameID int64, url string) error {
	if err := s.gameRepo.UpdateEvidenceURL(ctx, nil, gameID, url); err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return ErrGameNotFound
		}
		return err
	}
	return nil
}

func (s *gameService) RecreateGame(ctx context.Context, input RecreateGameInput, actorEmail string) (*models.GameResult, error) {
	if input.OldID == 0 {
		return s.SubmitGame(ctx, input.SubmitGameInput)
	}
	if input.Op == "delete" {
		return nil, s.deleteGameRecreateRatings(ctx, input.OldID, actorEmail)
	}
	return nil, s.startRecreatingRatings(ctx, input, actorEmail)
}

// stakeClassChanges reports whether moving a game between tournaments
// changes its stake rules. Only an actual crossing into or out of the
// friendly category forces a recompute.
func stakeClassChanges(oldTournamentID, newTournamentID int) bool {
	if oldTournamentID == newTournamentID {
		return false
	}
	return oldTournamentID == rating.FriendlyTournamentID || newTournamentID == rating.FriendlyTournamentID
}

func (s *gameService) startRecreatingRatings(ctx context.Context, input RecreateGameInput, actorEmail string) error {
	if err := s.validateSubmitInput(ctx, input.SubmitGameInput); err != nil {
		return err
	}

	s.cascadeMu.Lock()
	defer s.cascadeMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.cascadeTimeout)
	defer cancel()

	var affectedGames, replayedSnapshots int
	err := s.txManager.WithinTransaction(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(tx repositories.SQLExecutor) error {
		dateNow := s.now()

		oldGame, err := s.gameRepo.GetByID(ctx, tx, input.OldID)
		if err != nil {
			if errors.Is(err, repositories.ErrGameNotFound) {
				return fmt.Errorf("%w: id %d", ErrGameNotFound, input.OldID)
			}
			return err
		}

		if err := s.archiveGame(ctx, tx, oldGame, actorEmail, dateNow); err != nil {
			return err
		}

		// Fast path: nothing rating-relevant changed, touch metadata only.
		if oldGame.USAPlayerID == input.USAPlayerID &&
			oldGame.USSRPlayerID == input.USSRPlayerID &&
			oldGame.GameWinner == input.GameWinner &&
			!stakeClassChanges(oldGame.TournamentID, input.TournamentID) {

			updated := *oldGame
			updated.UpdatedAt = dateNow
			updated.GameCode = input.GameCode
			updated.EndTurn = input.EndTurn
			updated.EndMode = input.EndMode
			updated.Video1 = input.Video1
			updated.ReporterID = input.ReporterID
			updated.TournamentID = input.TournamentID
			if err := s.gameRepo.UpdateMetadata(ctx, tx, &updated); err != nil {
				return err
			}
			s.logger.Info("game metadata updated without recompute", slog.Int64("game_id", oldGame.ID))
			return nil
		}

		affected, err := s.clearAffectedSuffix(ctx, tx, oldGame.CreatedAt)
		if err != nil {
			return err
		}
		affectedGames = len(affected)

		replayed, err := s.replayAffected(ctx, tx, affected, oldGame.ID, &input, dateNow)
		if err != nil {
			return err
		}
		replayedSnapshots = replayed
		return nil
	})
	if err != nil {
		return s.mapCascadeError(err, input.OldID, "recreate")
	}

	s.logger.Info("recompute cascade committed",
		slog.String("op", "recreate"),
		slog.Int64("game_id", input.OldID),
		slog.Int("affected_games", affectedGames),
		slog.Int("snapshots_rewritten", replayedSnapshots),
	)
	s.notifyTournament(input.TournamentID, "RATINGS_RECOMPUTED", input.OldID)
	return nil
}

func (s *gameService) deleteGameRecreateRatings(ctx context.Context, gameID int64, actorEmail string) error {
	s.cascadeMu.Lock()
	defer s.cascadeMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.cascadeTimeout)
	defer cancel()

	var tournamentID int
	var affectedGames int
	err := s.txManager.WithinTransaction(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(tx repositories.SQLExecutor) error {
		dateNow := s.now()

		oldGame, err := s.gameRepo.GetByID(ctx, tx, gameID)
		if err != nil {
			if errors.Is(err, repositories.ErrGameNotFound) {
				return fmt.Errorf("%w: id %d", ErrGameNotFound, gameID)
			}
			return err
		}
		tournamentID = oldGame.TournamentID

		if err := s.archiveGame(ctx, tx, oldGame, actorEmail, dateNow); err != nil {
			return err
		}

		if err := s.scheduleRepo.UnlinkGameResult(ctx, tx, gameID); err != nil {
			return fmt.Errorf("failed to unlink schedule slots for game %d: %w", gameID, err)
		}

		affected, err := s.clearAffectedSuffix(ctx, tx, oldGame.CreatedAt)
		if err != nil {
			return err
		}
		affectedGames = len(affected)

		if err := s.gameRepo.Delete(ctx, tx, gameID); err != nil {
			return fmt.Errorf("failed to delete game %d: %w", gameID, err)
		}

		// The deleted game is simply absent from the replay.
		if _, err := s.replayAffected(ctx, tx, affected, gameID, nil, dateNow); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return s.mapCascadeError(err, gameID, "delete")
	}

	s.logger.Info("recompute cascade committed",
		slog.String("op", "delete"),
		slog.Int64("game_id", gameID),
		slog.Int("affected_games", affectedGames),
	)
	s.notifyTournament(tournamentID, "RATINGS_RECOMPUTED", gameID)
	return nil
}

func (s *gameService) archiveGame(ctx context.Context, tx repositories.SQLExecutor, game *models.GameResult, actorEmail string, loggedAt time.Time) error {
	entry := &models.GameAuditEntry{
		GameID:       game.ID,
		LoggedAt:     loggedAt,
		USAPlayerID:  game.USAPlayerID,
		USSRPlayerID: game.USSRPlayerID,
		TournamentID: game.TournamentID,
		GameCode:     game.GameCode,
		GameWinner:   game.GameWinner,
		EndTurn:      game.EndTurn,
		EndMode:      game.EndMode,
		GameDate:     game.GameDate,
		Video1:       game.Video1,
		ActorEmail:   actorEmail,
	}
	if err := s.auditRepo.Create(ctx, tx, entry); err != nil {
		return fmt.Errorf("failed to archive game %d before change: %w", game.ID, err)
	}
	return nil
}

// clearAffectedSuffix loads every game at or after the pivot timestamp, in
// replay order, and deletes all of their snapshots.
func (s *gameService) clearAffectedSuffix(ctx context.Context, tx repositories.SQLExecutor, since time.Time) ([]*models.GameResult, error) {
	affected, err := s.gameRepo.ListAffectedSince(ctx, tx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list affected games since %s: %w", since.Format(time.RFC3339), err)
	}

	ids := make([]int64, len(affected))
	for i, g := range affected {
		ids[i] = g.ID
	}
	deleted, err := s.snapshotRepo.DeleteByGameIDs(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("cleared snapshots for affected suffix",
		slog.Int("games", len(affected)), slog.Int64("snapshots_deleted", deleted))
	return affected, nil
}

// replayAffected walks the affected suffix in timestamp order and rebuilds
// the rating lineage. The target game (when edited, not deleted) replays
// with its new field values at its original position; every other game
// replays with its stored fields. Each step reads the participants'
// ledger-current ratings, which already include everything replayed
// earlier in this pass.
func (s *gameService) replayAffected(ctx context.Context, tx repositories.SQLExecutor, affected []*models.GameResult, targetID int64, edit *RecreateGameInput, dateNow time.Time) (int, error) {
	snapshots := 0
	for i, game := range affected {
		if game.ID == targetID && edit == nil {
			// Deleted game: leave it out of the replay entirely.
			continue
		}

		usaID, ussrID := game.USAPlayerID, game.USSRPlayerID
		winner, tournamentID := game.GameWinner, game.TournamentID
		isTarget := game.ID == targetID
		if isTarget {
			usaID, ussrID = edit.USAPlayerID, edit.USSRPlayerID
			winner, tournamentID = edit.GameWinner, edit.TournamentID
		}

		calc, err := s.ratingService.CalculateRating(ctx, tx, usaID, ussrID, winner, tournamentID)
		if err != nil {
			return snapshots, fmt.Errorf("replay failed at game %d: %w", game.ID, err)
		}

		// Drift check at the cascade boundary: the first replayed game's
		// stored previous ratings must match the pre-suffix ledger, unless
		// the game itself is being rewritten. A mismatch means the log was
		// corrupt before this operation; replaying the suffix cannot repair
		// the prefix, so the cascade aborts instead of papering over it.
		if i == 0 && !isTarget {
			if game.USAPreviousRating != calc.USARating || game.USSRPreviousRating != calc.USSRRating {
				return snapshots, fmt.Errorf(
					"%w: game %d expected previous ratings (%d, %d), ledger has (%d, %d)",
					ErrRatingLedgerCorrupted, game.ID,
					game.USAPreviousRating, game.USSRPreviousRating,
					calc.USARating, calc.USSRRating,
				)
			}
		}

		if isTarget {
			updated := *game
			updated.UpdatedAt = dateNow
			updated.USAPlayerID = usaID
			updated.USSRPlayerID = ussrID
			updated.USAPreviousRating = calc.USARating
			updated.USSRPreviousRating = calc.USSRRating
			updated.TournamentID = tournamentID
			updated.GameCode = edit.GameCode
			updated.GameWinner = winner
			updated.EndTurn = edit.EndTurn
			updated.EndMode = edit.EndMode
			updated.Video1 = edit.Video1
			updated.ReporterID = edit.ReporterID
			if err := s.gameRepo.Update(ctx, tx, &updated); err != nil {
				return snapshots, fmt.Errorf("failed to update target game %d: %w", game.ID, err)
			}
		} else if err := s.gameRepo.UpdatePreviousRatings(ctx, tx, game.ID, calc.USARating, calc.USSRRating); err != nil {
			return snapshots, fmt.Errorf("failed to update previous ratings for game %d: %w", game.ID, err)
		}

		if err := s.writeSnapshotPairIDs(ctx, tx, game.ID, usaID, ussrID, calc, replayGameCode, game.CreatedAt, dateNow); err != nil {
			return snapshots, err
		}
		snapshots += 2
	}
	return snapshots, nil
}

func (s *gameService) writeSnapshotPair(ctx context.Context, tx repositories.SQLExecutor, game *models.GameResult, calc *CalculatedRatings, gameCode string, createdAt, updatedAt time.Time) error {
	return s.writeSnapshotPairIDs(ctx, tx, game.ID, game.USAPlayerID, game.USSRPlayerID, calc, gameCode, createdAt, updatedAt)
}

func (s *gameService) writeSnapshotPairIDs(ctx context.Context, tx repositories.SQLExecutor, gameID, usaID, ussrID int64, calc *CalculatedRatings, gameCode string, createdAt, updatedAt time.Time) error {
	pair := []*models.RatingSnapshot{
		{PlayerID: usaID, GameResultID: gameID, Rating: calc.NewUSARating, GameCode: gameCode, CreatedAt: createdAt, UpdatedAt: updatedAt},
		{PlayerID: ussrID, GameResultID: gameID, Rating: calc.NewUSSRRating, GameCode: gameCode, CreatedAt: createdAt, UpdatedAt: updatedAt},
	}
	for _, snapshot := range pair {
		if err := s.snapshotRepo.Create(ctx, tx, snapshot); err != nil {
			return fmt.Errorf("failed to create snapshot for player %d game %d: %w", snapshot.PlayerID, gameID, err)
		}
	}
	return nil
}

func (s *gameService) mapCascadeError(err error, gameID int64, op string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger.Error("recompute cascade timed out, rolled back",
			slog.String("op", op), slog.Int64("game_id", gameID))
		return ErrRecomputeTimeout
	}
	s.logger.Error("recompute cascade aborted",
		slog.String("op", op), slog.Int64("game_id", gameID), slog.Any("error", err))
	return err
}

func (s *gameService) notifyTournament(tournamentID int, event string, gameID int64) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToRoom("tournament_"+strconv.Itoa(tournamentID), map[string]interface{}{
		"type":    event,
		"payload": map[string]int64{"game_id": gameID},
	})
}
