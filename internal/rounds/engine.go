// Package rounds drives the session state machine: lobby to start, leader
// election to decision to results, card advancement, pause/resume, and the
// timer sweep that keeps stalled sessions moving.
package rounds

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	mrand "math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tsvoboda/crisis-council-backend/internal/cache"
	"github.com/tsvoboda/crisis-council-backend/internal/election"
	"github.com/tsvoboda/crisis-council-backend/internal/game"
	"github.com/tsvoboda/crisis-council-backend/internal/models"
	"github.com/tsvoboda/crisis-council-backend/internal/notify"
	"github.com/tsvoboda/crisis-council-backend/internal/store"
	"github.com/tsvoboda/crisis-council-backend/pkg/types"
)

// Options tune engine behavior; zero values fall back to sane defaults.
type Options struct {
	SnapshotTTL    time.Duration   // read cache TTL for snapshot/results
	ResultsSeconds int             // how long the results phase lingers
	Policy         game.TermPolicy // when a new leader election is required
}

type Engine struct {
	db       store.DB
	cache    *cache.Cache
	hub      *notify.Hub
	election *election.Coordinator
	log      *zap.Logger

	snapshotTTL    time.Duration
	resultsSeconds int
	policy         game.TermPolicy

	now func() time.Time
	rng *mrand.Rand
}

func NewEngine(db store.DB, c *cache.Cache, hub *notify.Hub, coord *election.Coordinator, log *zap.Logger, opts Options) *Engine {
	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = 2 * time.Second
	}
	if opts.ResultsSeconds <= 0 {
		opts.ResultsSeconds = 15
	}
	if opts.Policy == nil {
		opts.Policy = game.EveryNRounds{N: 1}
	}
	return &Engine{
		db:             db,
		cache:          c,
		hub:            hub,
		election:       coord,
		log:            log,
		snapshotTTL:    opts.SnapshotTTL,
		resultsSeconds: opts.ResultsSeconds,
		policy:         opts.Policy,
		now:            time.Now,
		rng:            mrand.New(mrand.NewSource(time.Now().UnixNano())),
	}
}

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generateCode() (string, error) {
	code := make([]byte, 6)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[n.Int64()]
	}
	return string(code), nil
}

func generateHostKey() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Create builds a WAITING session with its card deck. The deck is stored
// unshuffled; ordering is frozen at Start.
func (e *Engine) Create(ctx context.Context, req types.CreateSessionRequest) (*models.GameSession, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: session name required", game.ErrValidation)
	}
	if len(req.Cards) == 0 {
		return nil, fmt.Errorf("%w: at least one card required", game.ErrValidation)
	}
	for _, c := range req.Cards {
		if c.Title == "" {
			return nil, fmt.Errorf("%w: card title required", game.ErrValidation)
		}
		if len(c.Responses) == 0 {
			return nil, fmt.Errorf("%w: card %q needs at least one response", game.ErrValidation, c.Title)
		}
	}
	if req.CardsPerRound < 1 {
		req.CardsPerRound = 1
	}
	if req.LeaderTermRounds < 1 {
		req.LeaderTermRounds = 1
	}

	var code string
	for {
		c, err := generateCode()
		if err != nil {
			return nil, err
		}
		_, err = e.db.GetSessionByCode(ctx, c)
		if errors.Is(err, game.ErrNotFound) {
			code = c
			break
		}
		if err != nil {
			return nil, err
		}
		// collision, roll again
	}
	hostKey, err := generateHostKey()
	if err != nil {
		return nil, err
	}

	now := e.now()
	sess := &models.GameSession{
		ID:               uuid.New(),
		Code:             code,
		HostKey:          hostKey,
		Name:             req.Name,
		Status:           game.StatusWaiting,
		RoundStatus:      game.RoundLeaderElection,
		CardsPerRound:    req.CardsPerRound,
		LeaderTermRounds: req.LeaderTermRounds,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = e.db.Transaction(ctx, func(tx store.Querier) error {
		if err := tx.CreateSession(ctx, sess); err != nil {
			return err
		}
		for _, ci := range req.Cards {
			tl := ci.TimeLimitMinutes
			if tl < 1 {
				tl = 2
			}
			card := &models.Card{
				ID:               uuid.New(),
				GameSessionID:    sess.ID,
				Title:            ci.Title,
				Description:      ci.Description,
				Category:         ci.Category,
				TimeLimitMinutes: tl,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			for _, ri := range ci.Responses {
				card.Responses = append(card.Responses, models.CardResponse{
					ID:                   uuid.New(),
					CardID:               card.ID,
					Text:                 ri.Text,
					Cost:                 ri.Cost,
					PoliticalEffect:      ri.PoliticalEffect,
					EconomicEffect:       ri.EconomicEffect,
					InfrastructureEffect: ri.InfrastructureEffect,
					SocietyEffect:        ri.SocietyEffect,
					EnvironmentEffect:    ri.EnvironmentEffect,
					CreatedAt:            now,
					UpdatedAt:            now,
				})
			}
			if err := tx.CreateCard(ctx, card); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("session created",
		zap.String("session", sess.ID.String()),
		zap.String("code", sess.Code),
		zap.Int("cards", len(req.Cards)))
	return sess, nil
}

func (e *Engine) checkHost(sess *models.GameSession, hostKey string) error {
	if sess.HostKey != hostKey {
		return game.ErrNotHost
	}
	return nil
}

// Start shuffles the deck, opens round 1 and enters leader election. Solo
// teams are auto-elected immediately; if that covers every team the session
// skips straight to the decision phase.
func (e *Engine) Start(ctx context.Context, sessionID uuid.UUID, hostKey string) error {
	var completedElection bool

	err := e.db.Transaction(ctx, func(tx store.Querier) error {
		sess, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := e.checkHost(sess, hostKey); err != nil {
			return err
		}
		if sess.Status != game.StatusWaiting {
			return game.ErrInvalidTransition
		}

		teams, err := tx.ListTeams(ctx, sessionID)
		if err != nil {
			return err
		}
		if len(teams) == 0 {
			return game.ErrNoTeams
		}
		players, err := tx.ListPlayers(ctx, sessionID)
		if err != nil {
			return err
		}
		connected := 0
		for _, p := range players {
			if p.IsConnected {
				connected++
			}
		}
		if connected == 0 {
			return game.ErrNoConnectedPlayers
		}

		cards, err := tx.ListCards(ctx, sessionID)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, len(cards))
		for i, c := range cards {
			ids[i] = c.ID
		}

		now := e.now()
		sess.Status = game.StatusInProgress
		sess.RoundStatus = game.RoundLeaderElection
		sess.CurrentRound = 1
		sess.CurrentCardIndex = 0
		sess.ShuffledCardIDs = game.ShuffleDeck(ids, e.rng)
		sess.StartedAt = &now
		sess.LastCardStartedAt = &now

		allElected, err := election.ResolveSoloTeams(ctx, tx, sess)
		if err != nil {
			return err
		}
		if allElected {
			sess.RoundStatus = game.RoundDecisionPhase
			completedElection = true
		}
		return tx.SaveSession(ctx, sess)
	})
	if err != nil {
		return err
	}

	e.cache.Invalidate(cache.SessionKeys(sessionID)...)
	e.hub.PublishEvent(sessionID, notify.EvtSessionStarted)
	if completedElection {
		e.hub.PublishEvent(sessionID, notify.EvtPhaseAdvanced)
	}
	e.log.Info("session started", zap.String("session", sessionID.String()))
	return nil
}

// Pause freezes timer-driven progress. In-flight votes and submissions are
// short transactions and need no cancellation.
func (e *Engine) Pause(ctx context.Context, sessionID uuid.UUID, hostKey string) error {
	err := e.db.Transaction(ctx, func(tx store.Querier) error {
		sess, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := e.checkHost(sess, hostKey); err != nil {
			return err
		}
		if sess.Status != game.StatusInProgress {
			return game.ErrInvalidTransition
		}
		now := e.now()
		sess.Status = game.StatusPaused
		sess.PausedAt = &now
		return tx.SaveSession(ctx, sess)
	})
	if err != nil {
		return err
	}

	e.cache.Invalidate(cache.SessionKeys(sessionID)...)
	e.hub.PublishEvent(sessionID, notify.EvtSessionPaused)
	return nil
}

// Resume returns to the prior phase. The card timer shifts forward by the
// paused duration so players don't lose time to the pause.
func (e *Engine) Resume(ctx context.Context, sessionID uuid.UUID, hostKey string) error {
	err := e.db.Transaction(ctx, func(tx store.Querier) error {
		sess, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := e.checkHost(sess, hostKey); err != nil {
			return err
		}
		if sess.Status != game.StatusPaused {
			return game.ErrInvalidTransition
		}
		if sess.PausedAt != nil && sess.LastCardStartedAt != nil {
			shifted := sess.LastCardStartedAt.Add(e.now().Sub(*sess.PausedAt))
			sess.LastCardStartedAt = &shifted
		}
		sess.Status = game.StatusInProgress
		sess.PausedAt = nil
		return tx.SaveSession(ctx, sess)
	})
	if err != nil {
		return err
	}

	e.cache.Invalidate(cache.SessionKeys(sessionID)...)
	e.hub.PublishEvent(sessionID, notify.EvtSessionResumed)
	return nil
}

// advanceCard moves the session off the results phase: either onto the next
// card (with a fresh election when the term policy demands one) or into the
// terminal COMPLETED state. Runs inside the caller's transaction.
func (e *Engine) advanceCard(ctx context.Context, tx store.Querier, sess *models.GameSession) (completed bool, err error) {
	if sess.CurrentCardIndex+1 >= len(sess.ShuffledCardIDs) {
		sess.Status = game.StatusCompleted
		if err := tx.SaveSession(ctx, sess); err != nil {
			return false, err
		}
		return true, nil
	}

	now := e.now()
	sess.CurrentCardIndex++
	// Rounds group CardsPerRound consecutive cards; the round number only
	// moves at a group boundary, so mid-round cards never trigger the term
	// policy.
	cpr := sess.CardsPerRound
	if cpr < 1 {
		cpr = 1
	}
	if sess.CurrentCardIndex%cpr == 0 {
		sess.CurrentRound++
	}
	sess.LastCardStartedAt = &now

	teams, err := tx.ListTeams(ctx, sess.ID)
	if err != nil {
		return false, err
	}
	// A session created with an explicit longer term overrides the
	// server-wide default policy.
	policy := e.policy
	if sess.LeaderTermRounds > 1 {
		policy = game.EveryNRounds{N: sess.LeaderTermRounds}
	}
	needsElection := false
	for i := range teams {
		t := &teams[i]
		roster, err := tx.ListTeamPlayers(ctx, t.ID)
		if err != nil {
			return false, err
		}
		if len(roster) == 0 {
			continue
		}
		if policy.NeedsElection(sess.CurrentRound, t.LastLeaderElectionRound) {
			t.ElectionStatus = game.ElectionOpen
			t.RunoffCandidates = nil
			if err := tx.SaveTeam(ctx, t); err != nil {
				return false, err
			}
			needsElection = true
		}
	}

	if needsElection {
		sess.RoundStatus = game.RoundLeaderElection
		allElected, err := election.ResolveSoloTeams(ctx, tx, sess)
		if err != nil {
			return false, err
		}
		if allElected {
			sess.RoundStatus = game.RoundDecisionPhase
		}
	} else {
		sess.RoundStatus = game.RoundDecisionPhase
	}
	return false, tx.SaveSession(ctx, sess)
}
