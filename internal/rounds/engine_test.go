package rounds

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tsvoboda/crisis-council-backend/internal/cache"
	"github.com/tsvoboda/crisis-council-backend/internal/election"
	"github.com/tsvoboda/crisis-council-backend/internal/game"
	"github.com/tsvoboda/crisis-council-backend/internal/models"
	"github.com/tsvoboda/crisis-council-backend/internal/notify"
	"github.com/tsvoboda/crisis-council-backend/internal/store/storetest"
	"github.com/tsvoboda/crisis-council-backend/pkg/types"
)

type fixture struct {
	db     *storetest.Fake
	engine *Engine
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	ctx := context.Background()

	db := storetest.New()
	c := cache.New(2 * time.Second)
	hub := notify.NewHub(ctx)
	coord := election.NewCoordinator(db, c, hub, zap.NewNop())
	return &fixture{
		db:     db,
		engine: NewEngine(db, c, hub, coord, zap.NewNop(), opts),
	}
}

func twoCardRequest() types.CreateSessionRequest {
	resp := []types.CardResponseInput{{Text: "act", Cost: -100, EconomicEffect: -50}}
	return types.CreateSessionRequest{
		Name: "drill",
		Cards: []types.CardInput{
			{Title: "Flood", Category: "environment", TimeLimitMinutes: 2, Responses: resp},
			{Title: "Blackout", Category: "infrastructure", TimeLimitMinutes: 2, Responses: resp},
		},
	}
}

// addTeam seeds a team with n connected players and returns them.
func (f *fixture) addTeam(t *testing.T, sessionID uuid.UUID, name string, order, n int) (*models.Team, []*models.Player) {
	t.Helper()
	ctx := context.Background()
	team := &models.Team{
		ID:             uuid.New(),
		GameSessionID:  sessionID,
		Name:           name,
		Order:          order,
		Budget:         1000,
		ElectionStatus: game.ElectionOpen,
	}
	require.NoError(t, f.db.CreateTeam(ctx, team))

	var players []*models.Player
	for i := 0; i < n; i++ {
		teamID := team.ID
		p := &models.Player{
			ID:            uuid.New(),
			GameSessionID: sessionID,
			TeamID:        &teamID,
			Name:          name + "-p",
			IsConnected:   true,
		}
		require.NoError(t, f.db.CreatePlayer(ctx, p))
		players = append(players, p)
	}
	return team, players
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	cases := []struct {
		name string
		req  types.CreateSessionRequest
	}{
		{"missing name", types.CreateSessionRequest{Cards: twoCardRequest().Cards}},
		{"no cards", types.CreateSessionRequest{Name: "x"}},
		{"card without responses", types.CreateSessionRequest{
			Name:  "x",
			Cards: []types.CardInput{{Title: "empty"}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.Create(ctx, tc.req)
			require.ErrorIs(t, err, game.ErrValidation)
		})
	}
}

func TestCreate_SeedsDeck(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	sess, err := f.engine.Create(ctx, twoCardRequest())
	require.NoError(t, err)
	require.Equal(t, game.StatusWaiting, sess.Status)
	require.Len(t, sess.Code, 6)
	require.NotEmpty(t, sess.HostKey)

	cards, err := f.db.ListCards(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	require.Len(t, cards[0].Responses, 1)
}

func TestStart_ShufflesAndEntersElection(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	sess, err := f.engine.Create(ctx, twoCardRequest())
	require.NoError(t, err)
	f.addTeam(t, sess.ID, "alpha", 0, 2)

	require.NoError(t, f.engine.Start(ctx, sess.ID, sess.HostKey))

	got, err := f.db.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, game.StatusInProgress, got.Status)
	require.Equal(t, game.RoundLeaderElection, got.RoundStatus)
	require.Equal(t, 1, got.CurrentRound)
	require.Equal(t, 0, got.CurrentCardIndex)
	require.Len(t, got.ShuffledCardIDs, 2)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.LastCardStartedAt)
}

func TestStart_SoloTeamsSkipElection(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	sess, err := f.engine.Create(ctx, twoCardRequest())
	require.NoError(t, err)
	_, players := f.addTeam(t, sess.ID, "solo", 0, 1)

	require.NoError(t, f.engine.Start(ctx, sess.ID, sess.HostKey))

	got, err := f.db.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, game.RoundDecisionPhase, got.RoundStatus)

	p, err := f.db.GetPlayer(ctx, players[0].ID)
	require.NoError(t, err)
	require.True(t, p.IsLeader)
}

func TestStart_Preconditions(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	sess, err := f.engine.Create(ctx, twoCardRequest())
	require.NoError(t, err)

	// no teams yet
	require.ErrorIs(t, f.engine.Start(ctx, sess.ID, sess.HostKey), game.ErrNoTeams)

	f.addTeam(t, sess.ID, "alpha", 0, 2)

	// wrong host key
	require.ErrorIs(t, f.engine.Start(ctx, sess.ID, "nope"), game.ErrNotHost)

	require.NoError(t, f.engine.Start(ctx, sess.ID, sess.HostKey))
	// double start
	require.ErrorIs(t, f.engine.Start(ctx, sess.ID, sess.HostKey), game.ErrInvalidTransition)
}

func TestPauseResume_ShiftsTimer(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	sess, err := f.engine.Create(ctx, twoCardRequest())
	require.NoError(t, err)
	f.addTeam(t, sess.ID, "alpha", 0, 2)
	require.NoError(t, f.engine.Start(ctx, sess.ID, sess.HostKey))

	before, err := f.db.GetSession(ctx, sess.ID)
	require.NoError(t, err)

	require.NoError(t, f.engine.Pause(ctx, sess.ID, sess.HostKey))
	paused, err := f.db.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, game.StatusPaused, paused.Status)
	require.NotNil(t, paused.PausedAt)

	// Move the pause start back so the resume shift is observable.
	past := paused.PausedAt.Add(-10 * time.Second)
	paused.PausedAt = &past
	require.NoError(t, f.db.SaveSession(ctx, paused))

	require.NoError(t, f.engine.Resume(ctx, sess.ID, sess.HostKey))
	resumed, err := f.db.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, game.StatusInProgress, resumed.Status)
	require.Nil(t, resumed.PausedAt)
	require.Equal(t, paused.RoundStatus, resumed.RoundStatus)
	require.True(t, resumed.LastCardStartedAt.After(*before.LastCardStartedAt))
}

func TestPause_RequiresInProgress(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	sess, err := f.engine.Create(ctx, twoCardRequest())
	require.NoError(t, err)
	require.ErrorIs(t, f.engine.Pause(ctx, sess.ID, sess.HostKey), game.ErrInvalidTransition)
}

// inProgressAt puts a started session at the given card index and phase.
func (f *fixture) inProgressAt(t *testing.T, sess *models.GameSession, index int, phase game.RoundStatus) *models.GameSession {
	t.Helper()
	ctx := context.Background()
	got, err := f.db.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	got.CurrentCardIndex = index
	got.CurrentRound = index + 1
	got.RoundStatus = phase
	require.NoError(t, f.db.SaveSession(ctx, got))
	return got
}

func TestAdvanceCard_LastCardCompletesSession(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	sess, err := f.engine.Create(ctx, twoCardRequest())
	require.NoError(t, err)
	f.addTeam(t, sess.ID, "alpha", 0, 2)
	require.NoError(t, f.engine.Start(ctx, sess.ID, sess.HostKey))
	f.inProgressAt(t, sess, 1, game.RoundResultsPhase) // last of 2 cards

	require.NoError(t, f.engine.AdvanceCard(ctx, sess.ID))

	got, err := f.db.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, game.StatusCompleted, got.Status)
	require.Equal(t, 1, got.CurrentCardIndex) // never wraps
}

func TestAdvanceCard_ReentersElectionEveryRound(t *testing.T) {
	f := newFixture(t, Options{Policy: game.EveryNRounds{N: 1}})
	ctx := context.Background()

	sess, err := f.engine.Create(ctx, twoCardRequest())
	require.NoError(t, err)
	team, _ := f.addTeam(t, sess.ID, "alpha", 0, 2)
	require.NoError(t, f.engine.Start(ctx, sess.ID, sess.HostKey))

	// Pretend round 1's election happened.
	tm, err := f.db.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	tm.ElectionStatus = game.ElectionCompleted
	tm.LastLeaderElectionRound = 1
	require.NoError(t, f.db.SaveTeam(ctx, tm))
	f.inProgressAt(t, sess, 0, game.RoundResultsPhase)

	require.NoError(t, f.engine.AdvanceCard(ctx, sess.ID))

	got, err := f.db.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.CurrentCardIndex)
	require.Equal(t, 2, got.CurrentRound)
	require.Equal(t, game.RoundLeaderElection, got.RoundStatus)

	tm, err = f.db.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	require.Equal(t, game.ElectionOpen, tm.ElectionStatus)
}

func TestAdvanceCard_LeaderServesFullTerm(t *testing.T) {
	f := newFixture(t, Options{Policy: game.EveryNRounds{N: 2}})
	ctx := context.Background()

	sess, err := f.engine.Create(ctx, twoCardRequest())
	require.NoError(t, err)
	team, players := f.addTeam(t, sess.ID, "alpha", 0, 2)
	require.NoError(t, f.engine.Start(ctx, sess.ID, sess.HostKey))

	tm, err := f.db.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	tm.ElectionStatus = game.ElectionCompleted
	tm.LastLeaderElectionRound = 1
	require.NoError(t, f.db.SaveTeam(ctx, tm))
	require.NoError(t, f.db.SetTeamLeader(ctx, team.ID, players[0].ID))
	f.inProgressAt(t, sess, 0, game.RoundResultsPhase)

	require.NoError(t, f.engine.AdvanceCard(ctx, sess.ID))

	got, err := f.db.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	// Term of two: round 2 keeps the round-1 leader and skips the election.
	require.Equal(t, game.RoundDecisionPhase, got.RoundStatus)

	p, err := f.db.GetPlayer(ctx, players[0].ID)
	require.NoError(t, err)
	require.True(t, p.IsLeader)
}

func TestAdvanceCard_CardsPerRoundGroupsCards(t *testing.T) {
	f := newFixture(t, Options{Policy: game.EveryNRounds{N: 1}})
	ctx := context.Background()

	req := twoCardRequest()
	req.CardsPerRound = 2
	sess, err := f.engine.Create(ctx, req)
	require.NoError(t, err)
	team, players := f.addTeam(t, sess.ID, "alpha", 0, 2)
	require.NoError(t, f.engine.Start(ctx, sess.ID, sess.HostKey))

	tm, err := f.db.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	tm.ElectionStatus = game.ElectionCompleted
	tm.LastLeaderElectionRound = 1
	require.NoError(t, f.db.SaveTeam(ctx, tm))
	require.NoError(t, f.db.SetTeamLeader(ctx, team.ID, players[0].ID))
	f.inProgressAt(t, sess, 0, game.RoundResultsPhase)

	require.NoError(t, f.engine.AdvanceCard(ctx, sess.ID))

	got, err := f.db.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	// Second card of a two-card round: same round, same leader, straight
	// to the decision phase.
	require.Equal(t, 1, got.CurrentCardIndex)
	require.Equal(t, 1, got.CurrentRound)
	require.Equal(t, game.RoundDecisionPhase, got.RoundStatus)

	p, err := f.db.GetPlayer(ctx, players[0].ID)
	require.NoError(t, err)
	require.True(t, p.IsLeader)
}

// flakyCodeDB fails join-code lookups to simulate a transient database error.
type flakyCodeDB struct {
	*storetest.Fake
	err error
}

func (f *flakyCodeDB) GetSessionByCode(ctx context.Context, code string) (*models.GameSession, error) {
	return nil, f.err
}

func TestCreate_CodeLookupErrorPropagates(t *testing.T) {
	ctx := context.Background()
	db := &flakyCodeDB{Fake: storetest.New(), err: errors.New("connection reset")}
	c := cache.New(2 * time.Second)
	hub := notify.NewHub(ctx)
	coord := election.NewCoordinator(db, c, hub, zap.NewNop())
	engine := NewEngine(db, c, hub, coord, zap.NewNop(), Options{})

	// A lookup failure must not be mistaken for a free code.
	_, err := engine.Create(ctx, twoCardRequest())
	require.ErrorIs(t, err, db.err)
}

func TestSweep_DecisionTimeoutMovesToResults(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	sess, err := f.engine.Create(ctx, twoCardRequest())
	require.NoError(t, err)
	f.addTeam(t, sess.ID, "alpha", 0, 2)
	require.NoError(t, f.engine.Start(ctx, sess.ID, sess.HostKey))
	got := f.inProgressAt(t, sess, 0, game.RoundDecisionPhase)

	// 2 minute card limit, started 3 minutes ago.
	old := time.Now().Add(-3 * time.Minute)
	got.LastCardStartedAt = &old
	require.NoError(t, f.db.SaveSession(ctx, got))

	f.engine.Tick(ctx)

	got, err = f.db.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, game.RoundResultsPhase, got.RoundStatus)
}

func TestSweep_ResultsTimeoutAdvancesCard(t *testing.T) {
	f := newFixture(t, Options{ResultsSeconds: 10})
	ctx := context.Background()

	sess, err := f.engine.Create(ctx, twoCardRequest())
	require.NoError(t, err)
	f.addTeam(t, sess.ID, "alpha", 0, 2)
	require.NoError(t, f.engine.Start(ctx, sess.ID, sess.HostKey))
	got := f.inProgressAt(t, sess, 0, game.RoundResultsPhase)

	old := time.Now().Add(-30 * time.Second)
	got.LastCardStartedAt = &old
	require.NoError(t, f.db.SaveSession(ctx, got))

	f.engine.Tick(ctx)

	got, err = f.db.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.CurrentCardIndex)
}

func TestSweep_ElectionTimeoutForcesProgress(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	sess, err := f.engine.Create(ctx, twoCardRequest())
	require.NoError(t, err)
	team, _ := f.addTeam(t, sess.ID, "alpha", 0, 2)
	require.NoError(t, f.engine.Start(ctx, sess.ID, sess.HostKey))

	expire := func() {
		got, err := f.db.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		old := time.Now().Add(-3 * time.Minute)
		got.LastCardStartedAt = &old
		require.NoError(t, f.db.SaveSession(ctx, got))
	}

	// First sweep: forced self-votes tie 1-1 and start a runoff.
	expire()
	f.engine.Tick(ctx)
	tm, err := f.db.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	require.Equal(t, game.ElectionRunoff, tm.ElectionStatus)

	// Second sweep: everyone is forced onto the first runoff candidate.
	expire()
	f.engine.Tick(ctx)
	tm, err = f.db.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	require.Equal(t, game.ElectionCompleted, tm.ElectionStatus)

	got, err := f.db.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, game.RoundDecisionPhase, got.RoundStatus)
}

func TestSweep_IgnoresPausedSessions(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	sess, err := f.engine.Create(ctx, twoCardRequest())
	require.NoError(t, err)
	f.addTeam(t, sess.ID, "alpha", 0, 2)
	require.NoError(t, f.engine.Start(ctx, sess.ID, sess.HostKey))
	require.NoError(t, f.engine.Pause(ctx, sess.ID, sess.HostKey))

	got, err := f.db.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	old := time.Now().Add(-time.Hour)
	got.LastCardStartedAt = &old
	require.NoError(t, f.db.SaveSession(ctx, got))

	f.engine.Tick(ctx)

	got, err = f.db.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, game.StatusPaused, got.Status)
	require.Equal(t, game.RoundLeaderElection, got.RoundStatus)
}

func TestSnapshot_CachedUntilInvalidated(t *testing.T) {
	f := newFixture(t, Options{SnapshotTTL: time.Minute})
	ctx := context.Background()

	sess, err := f.engine.Create(ctx, twoCardRequest())
	require.NoError(t, err)
	f.addTeam(t, sess.ID, "alpha", 0, 2)

	s1, err := f.engine.Snapshot(ctx, sess.ID)
	require.NoError(t, err)
	s2, err := f.engine.Snapshot(ctx, sess.ID)
	require.NoError(t, err)
	// Identical cached value within the TTL with no intervening mutation.
	require.Same(t, s1, s2)

	// A mutation invalidates before returning, so the next read is fresh.
	require.NoError(t, f.engine.Start(ctx, sess.ID, sess.HostKey))
	s3, err := f.engine.Snapshot(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, string(game.StatusInProgress), s3.Status)
}

func TestSnapshot_DerivesTimeRemaining(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	sess, err := f.engine.Create(ctx, twoCardRequest())
	require.NoError(t, err)
	f.addTeam(t, sess.ID, "alpha", 0, 2)
	require.NoError(t, f.engine.Start(ctx, sess.ID, sess.HostKey))

	got, err := f.db.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	started := time.Now().Add(-30 * time.Second)
	got.LastCardStartedAt = &started
	require.NoError(t, f.db.SaveSession(ctx, got))

	snap, err := f.engine.Snapshot(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, snap.ActiveCard)
	// 2 minute limit minus ~30 elapsed seconds.
	require.InDelta(t, 90, snap.TimeRemaining, 2)
}

func TestResults_RanksTeamsAndAwards(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	sess, err := f.engine.Create(ctx, twoCardRequest())
	require.NoError(t, err)
	alpha, alphaPlayers := f.addTeam(t, sess.ID, "alpha", 0, 2)
	_, bravoPlayers := f.addTeam(t, sess.ID, "bravo", 1, 2)

	require.NoError(t, f.db.AddPlayerScore(ctx, alphaPlayers[0].ID, 60))
	require.NoError(t, f.db.AddPlayerScore(ctx, bravoPlayers[0].ID, 10))
	require.NoError(t, f.db.AddTeamBudget(ctx, alpha.ID, -2000)) // into debt

	res, err := f.engine.Results(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, res.Teams, 2)
	require.Equal(t, []uuid.UUID{alpha.ID}, res.Winners)

	var top types.TeamResult
	for _, tr := range res.Teams {
		if tr.ID == alpha.ID {
			top = tr
		}
	}
	require.Equal(t, 60, top.Score)
	require.True(t, top.IsDebt)

	// Award interpretation is data-driven: 60 ≥ 50 earns the score badge,
	// negative budget earns the debt badge.
	require.Contains(t, top.Players[0].Awards, "High Performer")
	require.Contains(t, top.Players[0].Awards, "In The Red")
}
