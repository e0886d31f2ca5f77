package rounds

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

// Run is the reliability baseline: a fixed-interval sweep that advances any
// session whose timer has expired. The push channel only makes clients poll
// sooner; correctness never depends on it. Paused sessions are not listed
// as active, so pausing stops auto-advance for free.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			e.Tick(ctx)
		}
	}
}

// Tick sweeps every in-progress session once.
func (e *Engine) Tick(ctx context.Context) {
	sessions, err := e.db.ListActiveSessions(ctx)
	if err != nil {
		e.log.Warn("sweep: list sessions", zap.Error(err))
		return
	}
	for i := range sessions {
		if err := e.sweepSession(ctx, &sessions[i]); err != nil {
			e.log.Warn("sweep: session",
				zap.String("session", sessions[i].ID.String()),
				zap.Error(err))
		}
	}
}

func (e *Engine) sweepSession(ctx context.Context, sess *models.GameSession) error {
	now := e.now()

	switch sess.RoundStatus {
	case game.RoundLeaderElection, game.RoundDecisionPhase:
		cardID, ok := sess.ActiveCardID()
		if !ok {
			return nil
		}
		card, err := e.db.GetCard(ctx, cardID)
		if err != nil {
			return err
		}
		if !game.Expired(card.TimeLimitMinutes*60, sess.LastCardStartedAt, now) {
			return nil
		}
		if sess.RoundStatus == game.RoundLeaderElection {
			// Voters stalled out: cast ballots on their behalf.
			return e.election.ForceVotes(ctx, sess.ID)
		}
		return e.expireDecision(ctx, sess.ID)

	case game.RoundResultsPhase:
		if !game.Expired(e.resultsSeconds, sess.LastCardStartedAt, now) {
			return nil
		}
		return e.AdvanceCard(ctx, sess.ID)
	}
	return nil
}

// expireDecision moves a timed-out decision phase to results even if some
// players never answered.
func (e *Engine) expireDecision(ctx context.Context, sessionID uuid.UUID) error {
	advanced := false
	err := e.db.Transaction(ctx, func(tx store.Querier) error {
		sess, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.Status != game.StatusInProgress || sess.RoundStatus != game.RoundDecisionPhase {
			return nil // raced with a submission; nothing to do
		}
		now := e.now()
		sess.RoundStatus = game.RoundResultsPhase
		sess.LastCardStartedAt = &now
		advanced = true
		return tx.SaveSession(ctx, sess)
	})
	if err != nil || !advanced {
		return err
	}

	e.cache.Invalidate(cache.SessionKeys(sessionID)...)
	e.hub.PublishEvent(sessionID, notify.EvtPhaseAdvanced)
	return nil
}

// AdvanceCard moves a session off the results phase onto the next card, or
// completes it on the last one.
func (e *Engine) AdvanceCard(ctx context.Context, sessionID uuid.UUID) error {
	var completed, moved bool

	err := e.db.Transaction(ctx, func(tx store.Querier) error {
		sess, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.Status != game.StatusInProgress || sess.RoundStatus != game.RoundResultsPhase {
			return nil
		}
		moved = true
		completed, err = e.advanceCard(ctx, tx, sess)
		return err
	})
	if err != nil || !moved {
		return err
	}

	e.cache.Invalidate(cache.SessionKeys(sessionID)...)
	if completed {
		e.hub.PublishEvent(sessionID, notify.EvtSessionCompleted)
		e.log.Info("session completed", zap.String("session", sessionID.String()))
	} else {
		e.hub.PublishEvent(sessionID, notify.EvtPhaseAdvanced)
	}
	return nil
}
