// Package teams covers the lobby: creating teams, joining by code, and
// distributing players across teams before the session starts.
package teams

import (
	"context"
	"fmt"
	mrand "math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tsvoboda/crisis-council-backend/internal/cache"
	"github.com/tsvoboda/crisis-council-backend/internal/game"
	"github.com/tsvoboda/crisis-council-backend/internal/models"
	"github.com/tsvoboda/crisis-council-backend/internal/notify"
	"github.com/tsvoboda/crisis-council-backend/internal/store"
)

type Service struct {
	db    store.DB
	cache *cache.Cache
	hub   *notify.Hub
	log   *zap.Logger
	rng   *mrand.Rand
	now   func() time.Time
}

func NewService(db store.DB, c *cache.Cache, hub *notify.Hub, log *zap.Logger) *Service {
	return &Service{
		db:    db,
		cache: c,
		hub:   hub,
		log:   log,
		rng:   mrand.New(mrand.NewSource(time.Now().UnixNano())),
		now:   time.Now,
	}
}

// CreateTeam adds a team to a waiting session. Duplicate names within a
// session are a conflict.
func (s *Service) CreateTeam(ctx context.Context, sessionID uuid.UUID, hostKey string, name string, budget, baseValue int) (*models.Team, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: team name required", game.ErrValidation)
	}

	var team *models.Team
	err := s.db.Transaction(ctx, func(tx store.Querier) error {
		sess, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.HostKey != hostKey {
			return game.ErrNotHost
		}
		if sess.Status != game.StatusWaiting {
			return game.ErrInvalidTransition
		}
		existing, err := tx.ListTeams(ctx, sessionID)
		if err != nil {
			return err
		}

		now := s.now()
		team = &models.Team{
			ID:             uuid.New(),
			GameSessionID:  sessionID,
			Name:           name,
			Order:          len(existing),
			Budget:         budget,
			BaseValue:      baseValue,
			ElectionStatus: game.ElectionOpen,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return tx.CreateTeam(ctx, team)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(cache.SessionKeys(sessionID)...)
	s.hub.PublishEvent(sessionID, notify.EvtTeamsAssigned)
	return team, nil
}

// Join adds a player to a waiting session looked up by join code.
func (s *Service) Join(ctx context.Context, code, name string) (*models.Player, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: player name required", game.ErrValidation)
	}

	var player *models.Player
	err := s.db.Transaction(ctx, func(tx store.Querier) error {
		sess, err := tx.GetSessionByCode(ctx, code)
		if err != nil {
			return err
		}
		if sess.Status != game.StatusWaiting {
			return game.ErrInvalidTransition
		}
		now := s.now()
		player = &models.Player{
			ID:            uuid.New(),
			GameSessionID: sess.ID,
			Name:          name,
			IsConnected:   true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return tx.CreatePlayer(ctx, player)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(cache.SessionKeys(player.GameSessionID)...)
	s.hub.PublishEvent(player.GameSessionID, notify.EvtTeamsAssigned)
	return player, nil
}

// SetConnected flips a player's presence flag.
func (s *Service) SetConnected(ctx context.Context, sessionID, playerID uuid.UUID, connected bool) error {
	err := s.db.Transaction(ctx, func(tx store.Querier) error {
		p, err := tx.GetPlayer(ctx, playerID)
		if err != nil {
			return err
		}
		if p.GameSessionID != sessionID {
			return game.ErrNotInSession
		}
		p.IsConnected = connected
		return tx.SavePlayer(ctx, p)
	})
	if err != nil {
		return err
	}
	s.cache.Invalidate(cache.SessionKeys(sessionID)...)
	return nil
}

// AssignRandom shuffles the connected players and deals them round-robin
// across teams in position order, keeping team sizes within one of each
// other. Leader flags reset because membership changed.
func (s *Service) AssignRandom(ctx context.Context, sessionID uuid.UUID, hostKey string) ([]store.Assignment, error) {
	var assignments []store.Assignment

	err := s.db.Transaction(ctx, func(tx store.Querier) error {
		sess, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.HostKey != hostKey {
			return game.ErrNotHost
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
		var ids []uuid.UUID
		for _, p := range players {
			if p.IsConnected {
				ids = append(ids, p.ID)
			}
		}
		if len(ids) == 0 {
			return game.ErrNoConnectedPlayers
		}

		s.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

		buckets := game.RoundRobin(ids, len(teams))
		for ti, bucket := range buckets {
			for _, pid := range bucket {
				assignments = append(assignments, store.Assignment{PlayerID: pid, TeamID: teams[ti].ID})
			}
		}
		return tx.AssignPlayers(ctx, assignments)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(cache.SessionKeys(sessionID)...)
	s.hub.PublishEvent(sessionID, notify.EvtTeamsAssigned)
	s.log.Info("teams assigned randomly",
		zap.String("session", sessionID.String()),
		zap.Int("players", len(assignments)))
	return assignments, nil
}

// AssignManual applies an explicit batch of player→team assignments
// atomically. Every referenced player and team must belong to the session.
func (s *Service) AssignManual(ctx context.Context, sessionID uuid.UUID, hostKey string, assignments []store.Assignment) error {
	err := s.db.Transaction(ctx, func(tx store.Querier) error {
		sess, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.HostKey != hostKey {
			return game.ErrNotHost
		}
		if sess.Status != game.StatusWaiting {
			return game.ErrInvalidTransition
		}
		for _, a := range assignments {
			p, err := tx.GetPlayer(ctx, a.PlayerID)
			if err != nil {
				return err
			}
			if p.GameSessionID != sessionID {
				return game.ErrNotInSession
			}
			t, err := tx.GetTeam(ctx, a.TeamID)
			if err != nil {
				return err
			}
			if t.GameSessionID != sessionID {
				return fmt.Errorf("%w: team belongs to another session", game.ErrValidation)
			}
		}
		return tx.AssignPlayers(ctx, assignments)
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(cache.SessionKeys(sessionID)...)
	s.hub.PublishEvent(sessionID, notify.EvtTeamsAssigned)
	return nil
}

// DeleteTeam removes a lobby team; its players are unassigned in the same
// transaction.
func (s *Service) DeleteTeam(ctx context.Context, sessionID, teamID uuid.UUID, hostKey string) error {
	err := s.db.Transaction(ctx, func(tx store.Querier) error {
		sess, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.HostKey != hostKey {
			return game.ErrNotHost
		}
		if sess.Status != game.StatusWaiting {
			return game.ErrInvalidTransition
		}
		t, err := tx.GetTeam(ctx, teamID)
		if err != nil {
			return err
		}
		if t.GameSessionID != sessionID {
			return fmt.Errorf("%w: team belongs to another session", game.ErrValidation)
		}
		return tx.DeleteTeam(ctx, teamID)
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(cache.SessionKeys(sessionID)...)
	s.hub.PublishEvent(sessionID, notify.EvtTeamsAssigned)
	return nil
}
