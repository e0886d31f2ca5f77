// Package ledger owns the only write path for team budgets and player
// scores. Both aggregates move through signed deltas inside one
// transaction per accepted submission; nothing else mutates them.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tsvoboda/crisis-council-backend/internal/cache"
	"github.com/tsvoboda/crisis-council-backend/internal/game"
	"github.com/tsvoboda/crisis-council-backend/internal/models"
	"github.com/tsvoboda/crisis-council-backend/internal/notify"
	"github.com/tsvoboda/crisis-council-backend/internal/store"
)

type Ledger struct {
	db    store.DB
	cache *cache.Cache
	hub   *notify.Hub
	log   *zap.Logger
	now   func() time.Time
}

func New(db store.DB, c *cache.Cache, hub *notify.Hub, log *zap.Logger) *Ledger {
	return &Ledger{db: db, cache: c, hub: hub, log: log, now: time.Now}
}

// SubmitResponse records a player's decision for the active card and applies
// its effects: budget moves by the response cost (debt allowed), the
// player's score moves by base value plus the summed effects, and the
// immutable decision row is inserted. A second submission for the same
// (player, card) pair is a conflict.
func (l *Ledger) SubmitResponse(ctx context.Context, sessionID, playerID, cardID, responseID uuid.UUID) (game.Consequence, error) {
	var (
		cons     game.Consequence
		advanced bool
	)

	err := l.db.Transaction(ctx, func(tx store.Querier) error {
		sess, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}

		player, err := tx.GetPlayer(ctx, playerID)
		if err != nil {
			return err
		}
		if player.GameSessionID != sessionID {
			return game.ErrNotInSession
		}
		if player.TeamID == nil {
			return game.ErrPlayerNoTeam
		}

		// Duplicate detection runs before the phase guard: a repeat of an
		// accepted (player, card) submission stays a conflict even after
		// the phase has moved on.
		already, err := tx.HasResponse(ctx, playerID, cardID)
		if err != nil {
			return err
		}
		if already {
			return game.ErrAlreadyResponded
		}

		if sess.Status != game.StatusInProgress || sess.RoundStatus != game.RoundDecisionPhase {
			return game.ErrInvalidTransition
		}
		active, ok := sess.ActiveCardID()
		if !ok || active != cardID {
			return game.ErrWrongCard
		}

		card, err := tx.GetCard(ctx, cardID)
		if err != nil {
			return err
		}
		var resp *models.CardResponse
		for i := range card.Responses {
			if card.Responses[i].ID == responseID {
				resp = &card.Responses[i]
				break
			}
		}
		if resp == nil {
			return game.ErrUnknownResponse
		}

		team, err := tx.GetTeam(ctx, *player.TeamID)
		if err != nil {
			return err
		}

		cons = game.ApplyResponse(team.Budget, team.BaseValue, resp.Cost, resp.Effects())

		if err := tx.AddTeamBudget(ctx, team.ID, resp.Cost); err != nil {
			return err
		}
		if err := tx.AddPlayerScore(ctx, playerID, cons.ScoreChange); err != nil {
			return err
		}

		// Unique (player, card) index is the backstop against a racing
		// duplicate; a violation rolls the deltas back with the tx.
		row := &models.PlayerResponse{
			ID:             uuid.New(),
			GameSessionID:  sessionID,
			PlayerID:       playerID,
			CardID:         cardID,
			CardResponseID: responseID,
			CreatedAt:      l.now(),
		}
		if err := tx.CreateResponse(ctx, row); err != nil {
			return err
		}

		done, err := allMembersResponded(ctx, tx, sess, cardID)
		if err != nil {
			return err
		}
		if done {
			sess.RoundStatus = game.RoundResultsPhase
			now := l.now()
			sess.LastCardStartedAt = &now
			if err := tx.SaveSession(ctx, sess); err != nil {
				return err
			}
			advanced = true
		}
		return nil
	})
	if err != nil {
		return game.Consequence{}, err
	}

	l.cache.Invalidate(cache.SessionKeys(sessionID)...)
	l.hub.PublishEvent(sessionID, notify.EvtResponseSubmitted)
	if advanced {
		l.hub.PublishEvent(sessionID, notify.EvtPhaseAdvanced)
	}

	l.log.Info("response submitted",
		zap.String("session", sessionID.String()),
		zap.String("player", playerID.String()),
		zap.Int("cost", cons.Cost),
		zap.Int("scoreChange", cons.ScoreChange),
		zap.Int("newBudget", cons.NewBudget),
		zap.Bool("debt", cons.IsDebt))
	return cons, nil
}

// allMembersResponded reports whether every connected, team-assigned player
// has a decision on record for the card; that is the trigger for
// RESULTS_PHASE. Anyone who never answers is covered by the decision timer.
func allMembersResponded(ctx context.Context, tx store.Querier, sess *models.GameSession, cardID uuid.UUID) (bool, error) {
	players, err := tx.ListPlayers(ctx, sess.ID)
	if err != nil {
		return false, err
	}
	responses, err := tx.ListCardResponses(ctx, sess.ID, cardID)
	if err != nil {
		return false, err
	}
	responded := make(map[uuid.UUID]bool, len(responses))
	for _, r := range responses {
		responded[r.PlayerID] = true
	}

	members := 0
	for _, p := range players {
		if !p.IsConnected || p.TeamID == nil {
			continue
		}
		members++
		if !responded[p.ID] {
			return false, nil
		}
	}
	return members > 0, nil
}
