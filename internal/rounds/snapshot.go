package rounds

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tsvoboda/crisis-council-backend/internal/cache"
	"github.com/tsvoboda/crisis-council-backend/internal/game"
	"github.com/tsvoboda/crisis-council-backend/internal/models"
	"github.com/tsvoboda/crisis-council-backend/pkg/types"
)

// Snapshot is the cache-fronted poll read. Within the TTL, repeat calls
// return the identical cached value; every mutation invalidates the key
// before returning, so a writer always sees its own write.
func (e *Engine) Snapshot(ctx context.Context, sessionID uuid.UUID) (*types.Snapshot, error) {
	v, err := e.cache.GetOrSet(cache.SnapshotKey(sessionID), e.snapshotTTL, func() (any, error) {
		return e.buildSnapshot(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.Snapshot), nil
}

func (e *Engine) buildSnapshot(ctx context.Context, sessionID uuid.UUID) (*types.Snapshot, error) {
	sess, err := e.db.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	teams, err := e.db.ListTeams(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	players, err := e.db.ListPlayers(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	snap := &types.Snapshot{
		SessionID:        sess.ID,
		Code:             sess.Code,
		Status:           string(sess.Status),
		RoundStatus:      string(sess.RoundStatus),
		CurrentRound:     sess.CurrentRound,
		CurrentCardIndex: sess.CurrentCardIndex,
		TotalCards:       len(sess.ShuffledCardIDs),
	}

	leaders := make(map[uuid.UUID]uuid.UUID)
	for _, p := range players {
		snap.Players = append(snap.Players, types.PlayerView{
			ID:          p.ID,
			Name:        p.Name,
			TeamID:      p.TeamID,
			IsLeader:    p.IsLeader,
			Score:       p.Score,
			IsConnected: p.IsConnected,
		})
		if p.IsLeader && p.TeamID != nil {
			leaders[*p.TeamID] = p.ID
		}
	}
	for _, t := range teams {
		tv := types.TeamView{
			ID:               t.ID,
			Name:             t.Name,
			Budget:           t.Budget,
			BaseValue:        t.BaseValue,
			ElectionStatus:   string(t.ElectionStatus),
			RunoffCandidates: t.RunoffCandidates,
		}
		if id, ok := leaders[t.ID]; ok {
			leaderID := id
			tv.LeaderID = &leaderID
		}
		snap.Teams = append(snap.Teams, tv)
	}

	if sess.Status == game.StatusInProgress || sess.Status == game.StatusPaused {
		if cardID, ok := sess.ActiveCardID(); ok {
			card, err := e.db.GetCard(ctx, cardID)
			if err != nil {
				return nil, err
			}
			snap.ActiveCard = activeCardView(card)
			snap.TimeRemaining = e.remaining(sess, card)
		}
	}
	return snap, nil
}

func activeCardView(card *models.Card) *types.ActiveCard {
	ac := &types.ActiveCard{
		ID:               card.ID,
		Title:            card.Title,
		Description:      card.Description,
		Category:         card.Category,
		TimeLimitMinutes: card.TimeLimitMinutes,
	}
	for _, r := range card.Responses {
		ac.Responses = append(ac.Responses, types.ResponseView{
			ID:                   r.ID,
			Text:                 r.Text,
			Cost:                 r.Cost,
			PoliticalEffect:      r.PoliticalEffect,
			EconomicEffect:       r.EconomicEffect,
			InfrastructureEffect: r.InfrastructureEffect,
			SocietyEffect:        r.SocietyEffect,
			EnvironmentEffect:    r.EnvironmentEffect,
		})
	}
	return ac
}

// remaining derives the countdown from the phase start; a paused session
// reports the value as of the pause.
func (e *Engine) remaining(sess *models.GameSession, card *models.Card) int {
	now := e.now()
	if sess.Status == game.StatusPaused && sess.PausedAt != nil {
		now = *sess.PausedAt
	}
	if sess.RoundStatus == game.RoundResultsPhase {
		return e.resultsSecondsLeft(sess, now)
	}
	return game.RemainingSeconds(card.TimeLimitMinutes, sess.LastCardStartedAt, now)
}

func (e *Engine) resultsSecondsLeft(sess *models.GameSession, now time.Time) int {
	if sess.LastCardStartedAt == nil {
		return e.resultsSeconds
	}
	left := e.resultsSeconds - int(now.Sub(*sess.LastCardStartedAt).Seconds())
	if left < 0 {
		return 0
	}
	return left
}

// Results is the ranking view: team score is the sum of member scores,
// winners are every team tied at the top, and award badges come from the
// closed condition set.
func (e *Engine) Results(ctx context.Context, sessionID uuid.UUID) (*types.Results, error) {
	v, err := e.cache.GetOrSet(cache.ResultsKey(sessionID), e.snapshotTTL, func() (any, error) {
		return e.buildResults(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.Results), nil
}

func (e *Engine) buildResults(ctx context.Context, sessionID uuid.UUID) (*types.Results, error) {
	sess, err := e.db.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	teams, err := e.db.ListTeams(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	res := &types.Results{
		SessionID: sess.ID,
		Status:    string(sess.Status),
	}

	best := 0
	hasTeams := false
	for _, t := range teams {
		roster, err := e.db.ListTeamPlayers(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		if len(roster) == 0 {
			continue
		}

		tr := types.TeamResult{
			ID:     t.ID,
			Name:   t.Name,
			Budget: t.Budget,
			IsDebt: t.Budget < 0,
		}
		for _, p := range roster {
			tr.Score += p.Score
			tr.Players = append(tr.Players, types.PlayerResult{
				ID:     p.ID,
				Name:   p.Name,
				Score:  p.Score,
				Awards: game.EvalAwards(game.DefaultAwards, game.Stats{Score: p.Score, Budget: t.Budget}),
			})
		}
		if !hasTeams || tr.Score > best {
			best = tr.Score
			hasTeams = true
		}
		res.Teams = append(res.Teams, tr)
	}

	for _, tr := range res.Teams {
		if tr.Score == best {
			res.Winners = append(res.Winners, tr.ID)
		}
	}
	return res, nil
}
