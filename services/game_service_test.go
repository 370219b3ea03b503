package services

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solidjuls/twilight-struggle-backend/models"
	"github.com/solidjuls/twilight-struggle-backend/repositories"
)

// ---- in-memory fakes ----

type fakeTxManager struct {
	began int
}

func (m *fakeTxManager) WithinTransaction(ctx context.Context, opts *sql.TxOptions, fn func(tx repositories.SQLExecutor) error) error {
	m.began++
	return fn(nil)
}

type fakeGameRepo struct {
	nextID int64
	games  map[int64]*models.GameResult
}

func newFakeGameRepo() *fakeGameRepo {
	return &fakeGameRepo{games: make(map[int64]*models.GameResult)}
}

func (r *fakeGameRepo) put(game *models.GameResult) {
	copied := *game
	r.games[game.ID] = &copied
	if game.ID > r.nextID {
		r.nextID = game.ID
	}
}

func (r *fakeGameRepo) Create(ctx context.Context, exec repositories.SQLExecutor, game *models.GameResult) error {
	r.nextID++
	game.ID = r.nextID
	r.put(game)
	return nil
}

func (r *fakeGameRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int64) (*models.GameResult, error) {
	game, ok := r.games[id]
	if !ok {
		return nil, repositories.ErrGameNotFound
	}
	copied := *game
	return &copied, nil
}

func (r *fakeGameRepo) ListAffectedSince(ctx context.Context, exec repositories.SQLExecutor, since time.Time) ([]*models.GameResult, error) {
	out := make([]*models.GameResult, 0)
	for _, game := range r.games {
		if !game.CreatedAt.Before(since) {
			copied := *game
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *fakeGameRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.GameResult, error) {
	out := make([]*models.GameResult, 0)
	for _, game := range r.games {
		if game.TournamentID == tournamentID {
			copied := *game
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *fakeGameRepo) Update(ctx context.Context, exec repositories.SQLExecutor, game *models.GameResult) error {
	if _, ok := r.games[game.ID]; !ok {
		return repositories.ErrGameNotFound
	}
	r.put(game)
	return nil
}

func (r *fakeGameRepo) UpdateMetadata(ctx context.Context, exec repositories.SQLExecutor, game *models.GameResult) error {
	stored, ok := r.games[game.ID]
	if !ok {
		return repositories.ErrGameNotFound
	}
	stored.UpdatedAt = game.UpdatedAt
	stored.GameCode = game.GameCode
	stored.EndTurn = game.EndTurn
	stored.EndMode = game.EndMode
	stored.Video1 = game.Video1
	stored.ReporterID = game.ReporterID
	stored.TournamentID = game.TournamentID
	return nil
}

func (r *fakeGameRepo) UpdatePreviousRatings(ctx context.Context, exec repositories.SQLExecutor, id int64, usaPrevious, ussrPrevious int) error {
	stored, ok := r.games[id]
	if !ok {
		return repositories.ErrGameNotFound
	}
	stored.USAPreviousRating = usaPrevious
	stored.USSRPreviousRating = ussrPrevious
	return nil
}

func (r *fakeGameRepo) UpdateEvidenceURL(ctx context.Context, exec repositories.SQLExecutor, id int64, url string) error {
	stored, ok := r.games[id]
	if !ok {
		return repositories.ErrGameNotFound
	}
	stored.Video1 = &url
	return nil
}

func (r *fakeGameRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int64) error {
	if _, ok := r.games[id]; !ok {
		return repositories.ErrGameNotFound
	}
	delete(r.games, id)
	return nil
}

type fakeSnapshotRepo struct {
	nextID    int64
	snapshots []*models.RatingSnapshot
}

func (r *fakeSnapshotRepo) LatestByPlayer(ctx context.Context, exec repositories.SQLExecutor, playerID int64) (*models.RatingSnapshot, error) {
	var latest *models.RatingSnapshot
	for _, s := range r.snapshots {
		if s.PlayerID != playerID {
			continue
		}
		if latest == nil ||
			s.CreatedAt.After(latest.CreatedAt) ||
			(s.CreatedAt.Equal(latest.CreatedAt) && s.ID > latest.ID) {
			latest = s
		}
	}
	if latest == nil {
		return nil, repositories.ErrRatingSnapshotNotFound
	}
	copied := *latest
	return &copied, nil
}

func (r *fakeSnapshotRepo) Create(ctx context.Context, exec repositories.SQLExecutor, snapshot *models.RatingSnapshot) error {
	r.nextID++
	snapshot.ID = r.nextID
	copied := *snapshot
	r.snapshots = append(r.snapshots, &copied)
	return nil
}

func (r *fakeSnapshotRepo) DeleteByGameIDs(ctx context.Context, exec repositories.SQLExecutor, gameIDs []int64) (int64, error) {
	ids := make(map[int64]bool, len(gameIDs))
	for _, id := range gameIDs {
		ids[id] = true
	}
	kept := r.snapshots[:0]
	var deleted int64
	for _, s := range r.snapshots {
		if ids[s.GameResultID] {
			deleted++
			continue
		}
		kept = append(kept, s)
	}
	r.snapshots = kept
	return deleted, nil
}

func (r *fakeSnapshotRepo) ListHistoryByPlayer(ctx context.Context, exec repositories.SQLExecutor, playerID int64) ([]*models.RatingHistoryEntry, error) {
	return nil, nil
}

func (r *fakeSnapshotRepo) ListLeaderboard(ctx context.Context, exec repositories.SQLExecutor, playerIDs []int64, limit, offset int) ([]*models.PlayerRating, int, error) {
	return nil, 0, nil
}

// forGame returns the snapshots of one game keyed by player id.
func (r *fakeSnapshotRepo) forGame(gameID int64) map[int64]int {
	out := make(map[int64]int)
	for _, s := range r.snapshots {
		if s.GameResultID == gameID {
			out[s.PlayerID] = s.Rating
		}
	}
	return out
}

type fakeAuditRepo struct {
	entries []*models.GameAuditEntry
}

func (r *fakeAuditRepo) Create(ctx context.Context, exec repositories.SQLExecutor, entry *models.GameAuditEntry) error {
	copied := *entry
	r.entries = append(r.entries, &copied)
	return nil
}

type fakeScheduleRepo struct {
	slots    map[int64]*models.ScheduleSlot
	linked   map[int64]int64 // slot id -> game id
	unlinked []int64
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{
		slots:  make(map[int64]*models.ScheduleSlot),
		linked: make(map[int64]int64),
	}
}

func (r *fakeScheduleRepo) LinkGameResult(ctx context.Context, exec repositories.SQLExecutor, slotID, gameResultID int64) error {
	if _, ok := r.slots[slotID]; !ok {
		return repositories.ErrScheduleSlotNotFound
	}
	r.linked[slotID] = gameResultID
	return nil
}

func (r *fakeScheduleRepo) UnlinkGameResult(ctx context.Context, exec repositories.SQLExecutor, gameResultID int64) error {
	r.unlinked = append(r.unlinked, gameResultID)
	for slotID, gameID := range r.linked {
		if gameID == gameResultID {
			delete(r.linked, slotID)
		}
	}
	return nil
}

type fakeUserRepo struct {
	users map[int64]*models.User
}

func newFakeUserRepo(ids ...int64) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[int64]*models.User)}
	for _, id := range ids {
		r.users[id] = &models.User{ID: id, FirstName: "Player", Role: models.RolePlayer}
	}
	return r
}

func (r *fakeUserRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int64) (*models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return user, nil
}

type fakeBroadcaster struct {
	rooms    []string
	messages []interface{}
}

func (b *fakeBroadcaster) BroadcastToRoom(roomID string, message interface{}) {
	b.rooms = append(b.rooms, roomID)
	b.messages = append(b.messages, message)
}

// fakeClock hands out strictly increasing timestamps so every submitted
// game lands at a distinct position on the timeline.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

type gameServiceFixture struct {
	service   *gameService
	tx        *fakeTxManager
	games     *fakeGameRepo
	snapshots *fakeSnapshotRepo
	audit     *fakeAuditRepo
	schedule  *fakeScheduleRepo
	users     *fakeUserRepo
	hub       *fakeBroadcaster
	clock     *fakeClock
}

func newGameServiceFixture(t *testing.T, userIDs ...int64) *gameServiceFixture {
	t.Helper()
	f := &gameServiceFixture{
		tx:        &fakeTxManager{},
		games:     newFakeGameRepo(),
		snapshots: &fakeSnapshotRepo{},
		audit:     &fakeAuditRepo{},
		schedule:  newFakeScheduleRepo(),
		users:     newFakeUserRepo(userIDs...),
		hub:       &fakeBroadcaster{},
		clock:     &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
	}
	svc := NewGameService(
		f.tx, f.games, f.snapshots, f.audit, f.schedule, f.users,
		NewRatingService(f.snapshots), f.hub, nil, 0,
	)
	f.service = svc.(*gameService)
	f.service.now = f.clock.Now
	return f
}

func (f *gameServiceFixture) submit(t *testing.T, usa, ussr int64, winner models.GameWinner, tournamentID int) *models.GameResult {
	t.Helper()
	game, err := f.service.SubmitGame(context.Background(), SubmitGameInput{
		USAPlayerID:  usa,
		USSRPlayerID: ussr,
		GameWinner:   winner,
		TournamentID: tournamentID,
		GameCode:     "r1",
	})
	require.NoError(t, err)
	return game
}

// ---- submission ----

func TestSubmitGameFirstGameStartsFromBaseline(t *testing.T) {
	f := newGameServiceFixture(t, 1, 2)

	game := f.submit(t, 1, 2, models.WinnerUSA, 3)

	assert.Equal(t, 5000, game.USAPreviousRating)
	assert.Equal(t, 5000, game.USSRPreviousRating)

	ledger := f.snapshots.forGame(game.ID)
	assert.Equal(t, 5100, ledger[1])
	assert.Equal(t, 4900, ledger[2])
	assert.Equal(t, 1, f.tx.began)
	assert.Equal(t, []string{"tournament_3"}, f.hub.rooms)
}

func TestSubmitGameChainsPreviousRatings(t *testing.T) {
	f := newGameServiceFixture(t, 1, 2)

	f.submit(t, 1, 2, models.WinnerUSA, 3)
	second := f.submit(t, 1, 2, models.WinnerUSA, 3)

	assert.Equal(t, 5100, second.USAPreviousRating)
	assert.Equal(t, 4900, second.USSRPreviousRating)

	// delta = round((4900-5100)*0.05) + 100 = 90
	ledger := f.snapshots.forGame(second.ID)
	assert.Equal(t, 5190, ledger[1])
	assert.Equal(t, 4810, ledger[2])
}

func TestSubmitGameLinksScheduleSlot(t *testing.T) {
	f := newGameServiceFixture(t, 1, 2)
	f.schedule.slots[7] = &models.ScheduleSlot{ID: 7, TournamentID: 3}

	slotID := int64(7)
	game, err := f.service.SubmitGame(context.Background(), SubmitGameInput{
		USAPlayerID:  1,
		USSRPlayerID: 2,
		GameWinner:   models.WinnerUSSR,
		TournamentID: 3,
		GameCode:     "r1",
		ScheduleID:   &slotID,
	})
	require.NoError(t, err)
	assert.Equal(t, game.ID, f.schedule.linked[7])
}

func TestSubmitGameUnknownScheduleSlot(t *testing.T) {
	f := newGameServiceFixture(t, 1, 2)

	slotID := int64(99)
	_, err := f.service.SubmitGame(context.Background(), SubmitGameInput{
		USAPlayerID:  1,
		USSRPlayerID: 2,
		GameWinner:   models.WinnerUSA,
		TournamentID: 3,
		GameCode:     "r1",
		ScheduleID:   &slotID,
	})
	assert.ErrorIs(t, err, ErrScheduleSlotNotFound)
}

func TestSubmitGameValidation(t *testing.T) {
	f := newGameServiceFixture(t, 1, 2)

	cases := []struct {
		name  string
		input SubmitGameInput
		want  error
	}{
		{"invalid winner", SubmitGameInput{USAPlayerID: 1, USSRPlayerID: 2, GameWinner: "7", TournamentID: 3}, ErrInvalidGameWinner},
		{"same player", SubmitGameInput{USAPlayerID: 1, USSRPlayerID: 1, GameWinner: models.WinnerUSA, TournamentID: 3}, ErrSamePlayer},
		{"missing player id", SubmitGameInput{USAPlayerID: 0, USSRPlayerID: 2, GameWinner: models.WinnerUSA, TournamentID: 3}, ErrInvalidPlayerID},
		{"invalid tournament", SubmitGameInput{USAPlayerID: 1, USSRPlayerID: 2, GameWinner: models.WinnerUSA, TournamentID: 0}, ErrInvalidTournamentID},
		{"unknown player", SubmitGameInput{USAPlayerID: 1, USSRPlayerID: 42, GameWinner: models.WinnerUSA, TournamentID: 3}, ErrPlayerNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.SubmitGame(context.Background(), tc.input)
			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, f.snapshots.snapshots, "no snapshot may be written on rejected input")
		})
	}
}

// ---- recreate (edit) ----

func TestRecreateGameZeroOldIDSubmits(t *testing.T) {
	f := newGameServiceFixture(t, 1, 2)

	game, err := f.service.RecreateGame(context.Background(), RecreateGameInput{
		SubmitGameInput: SubmitGameInput{
			USAPlayerID:  1,
			USSRPlayerID: 2,
			GameWinner:   models.WinnerUSA,
			TournamentID: 3,
			GameCode:     "r1",
		},
	}, "admin@ladder.example")
	require.NoError(t, err)
	require.NotNil(t, game)
	assert.NotZero(t, game.ID)
	assert.Empty(t, f.audit.entries, "plain submission is not an edit")
}

func TestRecreateGameEditWinnerToTie(t *testing.T) {
	f := newGameServiceFixture(t, 1, 2)
	game := f.submit(t, 1, 2, models.WinnerUSA, 3)

	_, err := f.service.RecreateGame(context.Background(), RecreateGameInput{
		OldID: game.ID,
		SubmitGameInput: SubmitGameInput{
			USAPlayerID:  1,
			USSRPlayerID: 2,
			GameWinner:   models.WinnerTie,
			TournamentID: 3,
			GameCode:     "r1",
		},
	}, "admin@ladder.example")
	require.NoError(t, err)

	// Tie between two baseline players moves nothing.
	ledger := f.snapshots.forGame(game.ID)
	assert.Equal(t, 5000, ledger[1])
	assert.Equal(t, 5000, ledger[2])

	stored, err := f.games.GetByID(context.Background(), nil, game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WinnerTie, stored.GameWinner)
	assert.Equal(t, 5000, stored.USAPreviousRating)
	assert.Equal(t, 5000, stored.USSRPreviousRating)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, game.ID, f.audit.entries[0].GameID)
	assert.Equal(t, models.WinnerUSA, f.audit.entries[0].GameWinner)
	assert.Equal(t, "admin@ladder.example", f.audit.entries[0].ActorEmail)
}

func TestRecreateGameEditToTieRestoresBaselineThroughCascade(t *testing.T) {
	f := newGameServiceFixture(t, 1, 2, 3)
	g1 := f.submit(t, 1, 2, models.WinnerUSA, 3) // 1: 5100, 2: 4900
	f.submit(t, 2, 3, models.WinnerUSA, 3)       // 2: 5005, 3: 4895

	_, err := f.service.RecreateGame(context.Background(), RecreateGameInput{
		OldID: g1.ID,
		SubmitGameInput: SubmitGameInput{
			USAPlayerID:  1,
			USSRPlayerID: 2,
			GameWinner:   models.WinnerTie,
			TournamentID: 3,
			GameCode:     "r1",
		},
	}, "admin@ladder.example")
	require.NoError(t, err)

	// Player 1's only game is now a tie between equals: back at baseline.
	svc := NewRatingService(f.snapshots)
	current, err := svc.CurrentRating(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 5000, current)

	// Player 2's later win replays from baseline instead of 4900.
	current, err = svc.CurrentRating(context.Background(), nil, 2)
	require.NoError(t, err)
	assert.Equal(t, 5100, current)
}

func TestRecreateGameReplaysFullSuffix(t *testing.T) {
	f := newGameServiceFixture(t, 1, 2, 3)
	g1 := f.submit(t, 1, 2, models.WinnerUSA, 3) // 1: 5100, 2: 4900
	g2 := f.submit(t, 1, 3, models.WinnerUSA, 3) // 1: 5195, 3: 4905
	g3 := f.submit(t, 2, 3, models.WinnerUSA, 3) // 2: 5000, 3: 4805

	// Flip the first game; everything after it must be replayed on the new
	// lineage.
	_, err := f.service.RecreateGame(context.Background(), RecreateGameInput{
		OldID: g1.ID,
		SubmitGameInput: SubmitGameInput{
			USAPlayerID:  1,
			USSRPlayerID: 2,
			GameWinner:   models.WinnerUSSR,
			TournamentID: 3,
			GameCode:     "r1",
		},
	}, "admin@ladder.example")
	require.NoError(t, err)

	// g1 flipped: 1 -> 4900, 2 -> 5100.
	ledger1 := f.snapshots.forGame(g1.ID)
	assert.Equal(t, 4900, ledger1[1])
	assert.Equal(t, 5100, ledger1[2])

	// g2 replayed from (4900, 5000): delta = round(100*0.05)+100 = 105.
	ledger2 := f.snapshots.forGame(g2.ID)
	assert.Equal(t, 5005, ledger2[1])
	assert.Equal(t, 4895, ledger2[3])

	// g3 replayed from (5100, 4895): delta = round(-205*0.05)+100 = 90.
	ledger3 := f.snapshots.forGame(g3.ID)
	assert.Equal(t, 5190, ledger3[2])
	assert.Equal(t, 4805, ledger3[3])

	// Stored previous ratings were rewritten to the new lineage.
	stored2, err := f.games.GetByID(context.Background(), nil, g2.ID)
	require.NoError(t, err)
	assert.Equal(t, 4900, stored2.USAPreviousRating)
	assert.Equal(t, 5000, stored2.USSRPreviousRating)

	stored3, err := f.games.GetByID(context.Background(), nil, g3.ID)
	require.NoError(t, err)
	assert.Equal(t, 5100, stored3.USAPreviousRating)
	assert.Equal(t, 4895, stored3.USSRPreviousRating)

	// Replayed snapshots are tagged and keep their game's timestamp.
	for _, s := range f.snapshots.snapshots {
		assert.Equal(t, replayGameCode, s.GameCode)
	}
}

func TestRecreateGameMetadataOnlySkipsRecompute(t *testing.T) {
	f := newGameServiceFixture(t, 1, 2)
	game := f.submit(t, 1, 2, models.WinnerUSA, 3)
	before := f.snapshots.forGame(game.ID)

	endTurn := 8
	_, err := f.service.RecreateGame(context.Background(), RecreateGameInput{
		OldID: game.ID,
		SubmitGameInput: SubmitGameInput{
			USAPlayerID:  1,
			USSRPlayerID: 2,
			GameWinner:   models.WinnerUSA,
			TournamentID: 3,
			GameCode:     "r2",
			EndTurn:      &endTurn,
		},
	}, "admin@ladder.example")
	require.NoError(t, err)

	// Ledger untouched, metadata rewritten, change still audited.
	assert.Equal(t, before, f.snapshots.forGame(game.ID))
	for _, s := range f.snapshots.snapshots {
		assert.NotEqual(t, replayGameCode, s.GameCode)
	}

	stored, err := f.games.GetByID(context.Background(), nil, game.ID)
	require.NoError(t, err)
	assert.Equal(t, "r2", stored.GameCode)
	require.NotNil(t, stored.EndTurn)
	assert.Equal(t, 8, *stored.EndTurn)
	assert.Len(t, f.audit.entries, 1)
}

func TestRecreateGameUnknownID(t *testing.T) {
	f := newGameServiceFixture(t, 1, 2)

	_, err := f.service.RecreateGame(context.Background(), RecreateGameInput{
		OldID: 404,
		SubmitGameInput: SubmitGameInput{
			USAPlayerID:  1,
			USSRPlayerID: 2,
			GameWinner:   models.WinnerUSA,
			TournamentID: 3,
			GameCode:     "r1",
		},
	}, "admin@ladder.example")
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestRecreateGameDetectsCorruptLedger(t *testing.T) {
	f := newGameServiceFixture(t, 1, 2, 3)
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	// Two games share a timestamp; editing the second one forces the first
	// to be replayed ahead of it, which is where the stored lineage is
	// checked against the ledger. The first game's stored previous rating
	// disagrees with the (empty) pre-suffix ledger.
	f.games.put(&models.GameResult{
		ID: 1, CreatedAt: at, UpdatedAt: at,
		USAPlayerID: 1, USSRPlayerID: 2,
		USAPreviousRating: 4990, USSRPreviousRating: 5000,
		TournamentID: 3, GameWinner: models.WinnerUSA, GameCode: "r1",
	})
	f.games.put(&models.GameResult{
		ID: 2, CreatedAt: at, UpdatedAt: at,
		USAPlayerID: 1, USSRPlayerID: 3,
		USAPreviousRating: 5090, USSRPreviousRating: 5000,
		TournamentID: 3, GameWinner: models.WinnerUSA, GameCode: "r1",
	})

	_, err := f.service.RecreateGame(context.Background(), RecreateGameInput{
		OldID: 2,
		SubmitGameInput: SubmitGameInput{
			USAPlayerID:  1,
			USSRPlayerID: 3,
			GameWinner:   models.WinnerUSSR,
			TournamentID: 3,
			GameCode:     "r1",
		},
	}, "admin@ladder.example")
	assert.ErrorIs(t, err, ErrRatingLedgerCorrupted)
}

// ---- recreate (delete) ----

func TestDeleteGameReplaysRemainder(t *testing.T) {
	f := newGameServiceFixture(t, 1, 2, 3)
	g1 := f.submit(t, 1, 2, models.WinnerUSA, 3)
	g2 := f.submit(t, 1, 3, models.WinnerUSA, 3)
	g3 := f.submit(t, 2, 3, models.WinnerUSA, 3)

	_, err := f.service.RecreateGame(context.Background(), RecreateGameInput{
		OldID: g1.ID,
		Op:    "delete",
	}, "admin@ladder.example")
	require.NoError(t, err)

	// The deleted game and its snapshots are gone.
	_, err = f.games.GetByID(context.Background(), nil, g1.ID)
	assert.ErrorIs(t, err, repositories.ErrGameNotFound)
	assert.Empty(t, f.snapshots.forGame(g1.ID))

	// g2 replays from baseline: 1 -> 5100, 3 -> 4900.
	ledger2 := f.snapshots.forGame(g2.ID)
	assert.Equal(t, 5100, ledger2[1])
	assert.Equal(t, 4900, ledger2[3])

	// g3 replays from (5000, 4900): delta = round(-100*0.05)+100 = 95.
	ledger3 := f.snapshots.forGame(g3.ID)
	assert.Equal(t, 5095, ledger3[2])
	assert.Equal(t, 4805, ledger3[3])

	assert.Contains(t, f.schedule.unlinked, g1.ID)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, g1.ID, f.audit.entries[0].GameID)
}

func TestDeleteLastGameLeavesPrefixUntouched(t *testing.T) {
	f := newGameServiceFixture(t, 1, 2)
	g1 := f.submit(t, 1, 2, models.WinnerUSA, 3)
	g2 := f.submit(t, 1, 2, models.WinnerUSA, 3)

	before := f.snapshots.forGame(g1.ID)

	_, err := f.service.RecreateGame(context.Background(), RecreateGameInput{
		OldID: g2.ID,
		Op:    "delete",
	}, "admin@ladder.example")
	require.NoError(t, err)

	assert.Equal(t, before, f.snapshots.forGame(g1.ID))
	assert.Empty(t, f.snapshots.forGame(g2.ID))

	// The ledger head rolls back to the first game's outcome.
	svc := NewRatingService(f.snapshots)
	current, err := svc.CurrentRating(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 5100, current)
}

// ---- replay determinism ----

func TestRecreateGameIsIdempotent(t *testing.T) {
	f := newGameServiceFixture(t, 1, 2, 3)
	g1 := f.submit(t, 1, 2, models.WinnerUSA, 3)
	f.submit(t, 1, 3, models.WinnerUSA, 3)
	f.submit(t, 2, 3, models.WinnerUSA, 3)

	edit := func(winner models.GameWinner) {
		t.Helper()
		_, err := f.service.RecreateGame(context.Background(), RecreateGameInput{
			OldID: g1.ID,
			SubmitGameInput: SubmitGameInput{
				USAPlayerID:  1,
				USSRPlayerID: 2,
				GameWinner:   winner,
				TournamentID: 3,
				GameCode:     "r1",
			},
		}, "admin@ladder.example")
		require.NoError(t, err)
	}

	edit(models.WinnerUSSR)
	first := make(map[int64]map[int64]int)
	for id := int64(1); id <= 3; id++ {
		first[id] = f.snapshots.forGame(id)
	}

	// Flip the outcome away and back: the second cascade replays over the
	// intermediate lineage yet lands on the identical ledger.
	edit(models.WinnerUSA)
	edit(models.WinnerUSSR)

	for id := int64(1); id <= 3; id++ {
		assert.Equal(t, first[id], f.snapshots.forGame(id), "game %d", id)
	}
}
