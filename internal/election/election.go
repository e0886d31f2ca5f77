// Package election implements the per-team, per-round leader vote: full
// roster tally, tie detection with runoff restarts, solo-team bypass, and
// forced ballots when the round timer runs out.
package election

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tsvoboda/crisis-council-backend/internal/cache"
	"github.com/tsvoboda/crisis-council-backend/internal/game"
	"github.com/tsvoboda/crisis-council-backend/internal/models"
	"github.com/tsvoboda/crisis-council-backend/internal/notify"
	"github.com/tsvoboda/crisis-council-backend/internal/store"
)

// VoteOutcome reports what a single ballot changed.
type VoteOutcome struct {
	Voted           bool        `json:"voted"`
	LeaderElected   bool        `json:"leaderElected"`
	LeaderID        uuid.UUID   `json:"leaderId,omitempty"`
	Runoff          bool        `json:"runoff"`
	Candidates      []uuid.UUID `json:"candidates,omitempty"`
	AllTeamsElected bool        `json:"allTeamsElected"`
}

type Coordinator struct {
	db    store.DB
	cache *cache.Cache
	hub   *notify.Hub
	log   *zap.Logger
	now   func() time.Time
}

func NewCoordinator(db store.DB, c *cache.Cache, hub *notify.Hub, log *zap.Logger) *Coordinator {
	return &Coordinator{db: db, cache: c, hub: hub, log: log, now: time.Now}
}

// CastVote records one ballot and resolves the team's election once the
// whole roster has voted. A duplicate ballot for the same round is a
// conflict, never a silent overwrite.
func (c *Coordinator) CastVote(ctx context.Context, sessionID, voterID, candidateID uuid.UUID) (VoteOutcome, error) {
	var out VoteOutcome

	err := c.db.Transaction(ctx, func(tx store.Querier) error {
		sess, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}

		voter, err := tx.GetPlayer(ctx, voterID)
		if err != nil {
			return err
		}
		if voter.GameSessionID != sessionID {
			return game.ErrNotInSession
		}
		if voter.TeamID == nil {
			return game.ErrPlayerNoTeam
		}

		// Duplicate detection runs before the phase guard so a repeat
		// ballot stays a conflict even after the election resolved and the
		// phase moved on.
		existing, err := tx.ListTeamVotes(ctx, sessionID, *voter.TeamID, sess.CurrentRound)
		if err != nil {
			return err
		}
		for _, v := range existing {
			if v.VoterID == voterID {
				return game.ErrDuplicateVote
			}
		}

		if sess.Status != game.StatusInProgress || sess.RoundStatus != game.RoundLeaderElection {
			return game.ErrInvalidTransition
		}

		candidate, err := tx.GetPlayer(ctx, candidateID)
		if err != nil {
			return err
		}
		if candidate.TeamID == nil || *candidate.TeamID != *voter.TeamID {
			return game.ErrNotTeammates
		}

		team, err := tx.GetTeam(ctx, *voter.TeamID)
		if err != nil {
			return err
		}
		if team.ElectionStatus == game.ElectionCompleted {
			return game.ErrInvalidTransition
		}
		if team.ElectionStatus == game.ElectionRunoff &&
			!game.Contains(team.RunoffCandidates, candidateID) {
			return game.ErrNotRunoffCandidate
		}

		vote := &models.LeaderVote{
			ID:            uuid.New(),
			GameSessionID: sessionID,
			TeamID:        team.ID,
			VoterID:       voterID,
			CandidateID:   candidateID,
			Round:         sess.CurrentRound,
			CreatedAt:     c.now(),
		}
		if err := tx.CreateVote(ctx, vote); err != nil {
			return err
		}
		out.Voted = true

		roster, err := tx.ListTeamPlayers(ctx, team.ID)
		if err != nil {
			return err
		}
		votes, err := tx.ListTeamVotes(ctx, sessionID, team.ID, sess.CurrentRound)
		if err != nil {
			return err
		}
		if len(votes) < len(roster) {
			return nil
		}

		ballots := make([]uuid.UUID, 0, len(votes))
		for _, v := range votes {
			ballots = append(ballots, v.CandidateID)
		}
		winners, _ := game.Tally(ballots)

		if len(winners) > 1 {
			return c.startRunoff(ctx, tx, sess, team, winners, &out)
		}
		return c.resolveWinner(ctx, tx, sess, team, winners[0], &out)
	})
	if err != nil {
		return VoteOutcome{}, err
	}

	c.cache.Invalidate(cache.SessionKeys(sessionID)...)
	switch {
	case out.Runoff:
		c.hub.PublishEvent(sessionID, notify.EvtRunoffStarted)
	case out.AllTeamsElected:
		c.hub.PublishEvent(sessionID, notify.EvtLeaderElected)
		c.hub.PublishEvent(sessionID, notify.EvtPhaseAdvanced)
	case out.LeaderElected:
		c.hub.PublishEvent(sessionID, notify.EvtLeaderElected)
	default:
		c.hub.PublishEvent(sessionID, notify.EvtVoteCast)
	}
	return out, nil
}

// startRunoff restarts the team's vote restricted to the tied candidates.
// All prior ballots for the round are deleted so the re-vote counts from
// zero, and the round timer restarts.
func (c *Coordinator) startRunoff(ctx context.Context, tx store.Querier, sess *models.GameSession, team *models.Team, winners []uuid.UUID, out *VoteOutcome) error {
	team.ElectionStatus = game.ElectionRunoff
	team.RunoffCandidates = winners
	team.RunoffCount++
	if err := tx.SaveTeam(ctx, team); err != nil {
		return err
	}
	if err := tx.DeleteTeamVotes(ctx, sess.ID, team.ID, sess.CurrentRound); err != nil {
		return err
	}

	now := c.now()
	sess.LastCardStartedAt = &now
	if err := tx.SaveSession(ctx, sess); err != nil {
		return err
	}

	out.Runoff = true
	out.Candidates = winners
	c.log.Info("leader election runoff",
		zap.String("session", sess.ID.String()),
		zap.String("team", team.ID.String()),
		zap.Int("round", sess.CurrentRound),
		zap.Int("candidates", len(winners)))
	return nil
}

func (c *Coordinator) resolveWinner(ctx context.Context, tx store.Querier, sess *models.GameSession, team *models.Team, winner uuid.UUID, out *VoteOutcome) error {
	if err := tx.SetTeamLeader(ctx, team.ID, winner); err != nil {
		return err
	}
	team.ElectionStatus = game.ElectionCompleted
	team.LastLeaderElectionRound = sess.CurrentRound
	team.RunoffCandidates = nil
	if err := tx.SaveTeam(ctx, team); err != nil {
		return err
	}

	out.LeaderElected = true
	out.LeaderID = winner
	c.log.Info("leader elected",
		zap.String("session", sess.ID.String()),
		zap.String("team", team.ID.String()),
		zap.String("leader", winner.String()),
		zap.Int("round", sess.CurrentRound))

	done, err := AllTeamsElected(ctx, tx, sess.ID)
	if err != nil {
		return err
	}
	if done {
		sess.RoundStatus = game.RoundDecisionPhase
		now := c.now()
		sess.LastCardStartedAt = &now
		if err := tx.SaveSession(ctx, sess); err != nil {
			return err
		}
		out.AllTeamsElected = true
	}
	return nil
}

// AllTeamsElected reports whether every team with at least one player has a
// completed election for the current round.
func AllTeamsElected(ctx context.Context, tx store.Querier, sessionID uuid.UUID) (bool, error) {
	teams, err := tx.ListTeams(ctx, sessionID)
	if err != nil {
		return false, err
	}
	for _, t := range teams {
		roster, err := tx.ListTeamPlayers(ctx, t.ID)
		if err != nil {
			return false, err
		}
		if len(roster) == 0 {
			continue
		}
		if t.ElectionStatus != game.ElectionCompleted {
			return false, nil
		}
	}
	return true, nil
}

// ResolveSoloTeams auto-elects the single member of one-player teams so a
// lone player never deadlocks waiting for a vote. Runs inside the caller's
// transaction at election-phase entry. Returns whether every populated team
// now has a leader.
func ResolveSoloTeams(ctx context.Context, tx store.Querier, sess *models.GameSession) (bool, error) {
	teams, err := tx.ListTeams(ctx, sess.ID)
	if err != nil {
		return false, err
	}
	for i := range teams {
		t := &teams[i]
		if t.ElectionStatus == game.ElectionCompleted {
			continue
		}
		roster, err := tx.ListTeamPlayers(ctx, t.ID)
		if err != nil {
			return false, err
		}
		var connected []models.Player
		for _, p := range roster {
			if p.IsConnected {
				connected = append(connected, p)
			}
		}
		if len(connected) != 1 {
			continue
		}

		if err := tx.SetTeamLeader(ctx, t.ID, connected[0].ID); err != nil {
			return false, err
		}
		t.ElectionStatus = game.ElectionCompleted
		t.LastLeaderElectionRound = sess.CurrentRound
		t.RunoffCandidates = nil
		if err := tx.SaveTeam(ctx, t); err != nil {
			return false, err
		}
	}
	return AllTeamsElected(ctx, tx, sess.ID)
}

// ForceVotes casts ballots on behalf of everyone who has not voted yet,
// used when the round timer expires. Runoff teams fall back to the first
// runoff candidate; everyone else votes for themselves.
func (c *Coordinator) ForceVotes(ctx context.Context, sessionID uuid.UUID) error {
	sess, err := c.db.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	teams, err := c.db.ListTeams(ctx, sessionID)
	if err != nil {
		return err
	}

	for _, team := range teams {
		if team.ElectionStatus == game.ElectionCompleted {
			continue
		}
		roster, err := c.db.ListTeamPlayers(ctx, team.ID)
		if err != nil {
			return err
		}
		if len(roster) == 0 {
			continue
		}
		votes, err := c.db.ListTeamVotes(ctx, sessionID, team.ID, sess.CurrentRound)
		if err != nil {
			return err
		}
		voted := make(map[uuid.UUID]bool, len(votes))
		for _, v := range votes {
			voted[v.VoterID] = true
		}

		for _, member := range roster {
			if voted[member.ID] {
				continue
			}
			candidate := member.ID
			if team.ElectionStatus == game.ElectionRunoff && len(team.RunoffCandidates) > 0 {
				candidate = team.RunoffCandidates[0]
			}
			out, err := c.CastVote(ctx, sessionID, member.ID, candidate)
			if err != nil {
				// A racing human ballot is fine; everything else aborts.
				if errorsIsConflict(err) {
					continue
				}
				return err
			}
			if out.LeaderElected || out.Runoff {
				break
			}
		}
	}
	return nil
}

func errorsIsConflict(err error) bool {
	return errors.Is(err, game.ErrConflict) || errors.Is(err, game.ErrInvalidTransition)
}
