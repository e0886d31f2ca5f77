// Package storetest provides an in-memory store.DB for service tests, so
// units run deterministically without a live database.
package storetest

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tsvoboda/crisis-council-backend/internal/game"
	"github.com/tsvoboda/crisis-council-backend/internal/models"
	"github.com/tsvoboda/crisis-council-backend/internal/store"
)

type Fake struct {
	mu sync.Mutex

	Sessions  map[uuid.UUID]*models.GameSession
	Teams     map[uuid.UUID]*models.Team
	Players   map[uuid.UUID]*models.Player
	Cards     map[uuid.UUID]*models.Card
	Votes     map[uuid.UUID]*models.LeaderVote
	Responses map[uuid.UUID]*models.PlayerResponse

	seq int // insertion order stand-in for created_at ordering
	ord map[uuid.UUID]int
}

func New() *Fake {
	return &Fake{
		Sessions:  map[uuid.UUID]*models.GameSession{},
		Teams:     map[uuid.UUID]*models.Team{},
		Players:   map[uuid.UUID]*models.Player{},
		Cards:     map[uuid.UUID]*models.Card{},
		Votes:     map[uuid.UUID]*models.LeaderVote{},
		Responses: map[uuid.UUID]*models.PlayerResponse{},
		ord:       map[uuid.UUID]int{},
	}
}

var _ store.DB = (*Fake)(nil)

func (f *Fake) track(id uuid.UUID) {
	f.seq++
	f.ord[id] = f.seq
}

// Transaction runs fn against the same fake. Tests exercise logic, not
// rollback; the real rollback path belongs to gorm.
func (f *Fake) Transaction(ctx context.Context, fn func(tx store.Querier) error) error {
	return fn(f)
}

// Sessions

func (f *Fake) CreateSession(ctx context.Context, s *models.GameSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sessions[s.ID] = s
	f.track(s.ID)
	return nil
}

func (f *Fake) GetSession(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.Sessions[id]
	if !ok {
		return nil, game.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *Fake) GetSessionByCode(ctx context.Context, code string) (*models.GameSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.Sessions {
		if s.Code == code {
			cp := *s
			return &cp, nil
		}
	}
	return nil, game.ErrSessionNotFound
}

func (f *Fake) SaveSession(ctx context.Context, s *models.GameSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.Sessions[s.ID] = &cp
	return nil
}

func (f *Fake) ListActiveSessions(ctx context.Context) ([]models.GameSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.GameSession
	for _, s := range f.Sessions {
		if s.Status == game.StatusInProgress {
			out = append(out, *s)
		}
	}
	return out, nil
}

// Teams

func (f *Fake) CreateTeam(ctx context.Context, t *models.Team) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, other := range f.Teams {
		if other.GameSessionID == t.GameSessionID && other.Name == t.Name {
			return game.ErrDuplicateTeamName
		}
	}
	f.Teams[t.ID] = t
	f.track(t.ID)
	return nil
}

func (f *Fake) GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.Teams[id]
	if !ok {
		return nil, game.ErrTeamNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *Fake) ListTeams(ctx context.Context, sessionID uuid.UUID) ([]models.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Team
	for _, t := range f.Teams {
		if t.GameSessionID == sessionID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (f *Fake) SaveTeam(ctx context.Context, t *models.Team) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.Teams[t.ID] = &cp
	return nil
}

func (f *Fake) DeleteTeam(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.Players {
		if p.TeamID != nil && *p.TeamID == id {
			p.TeamID = nil
			p.IsLeader = false
		}
	}
	delete(f.Teams, id)
	return nil
}

func (f *Fake) AddTeamBudget(ctx context.Context, teamID uuid.UUID, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.Teams[teamID]
	if !ok {
		return game.ErrTeamNotFound
	}
	t.Budget += delta
	return nil
}

// Players

func (f *Fake) CreatePlayer(ctx context.Context, p *models.Player) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Players[p.ID] = p
	f.track(p.ID)
	return nil
}

func (f *Fake) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Players[id]
	if !ok {
		return nil, game.ErrPlayerNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *Fake) listPlayers(filter func(*models.Player) bool) []models.Player {
	var out []models.Player
	for _, p := range f.Players {
		if filter(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return f.ord[out[i].ID] < f.ord[out[j].ID] })
	return out
}

func (f *Fake) ListPlayers(ctx context.Context, sessionID uuid.UUID) ([]models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listPlayers(func(p *models.Player) bool { return p.GameSessionID == sessionID }), nil
}

func (f *Fake) ListTeamPlayers(ctx context.Context, teamID uuid.UUID) ([]models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listPlayers(func(p *models.Player) bool {
		return p.TeamID != nil && *p.TeamID == teamID
	}), nil
}

func (f *Fake) SavePlayer(ctx context.Context, p *models.Player) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.Players[p.ID] = &cp
	return nil
}

func (f *Fake) AssignPlayers(ctx context.Context, assignments []store.Assignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range assignments {
		p, ok := f.Players[a.PlayerID]
		if !ok {
			return game.ErrPlayerNotFound
		}
		teamID := a.TeamID
		p.TeamID = &teamID
		p.IsLeader = false
	}
	return nil
}

func (f *Fake) SetTeamLeader(ctx context.Context, teamID, playerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.Players {
		if p.TeamID != nil && *p.TeamID == teamID {
			p.IsLeader = p.ID == playerID
		}
	}
	return nil
}

func (f *Fake) AddPlayerScore(ctx context.Context, playerID uuid.UUID, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Players[playerID]
	if !ok {
		return game.ErrPlayerNotFound
	}
	p.Score += delta
	return nil
}

// Cards

func (f *Fake) CreateCard(ctx context.Context, c *models.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Cards[c.ID] = c
	f.track(c.ID)
	return nil
}

func (f *Fake) GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.Cards[id]
	if !ok {
		return nil, game.ErrCardNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *Fake) ListCards(ctx context.Context, sessionID uuid.UUID) ([]models.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Card
	for _, c := range f.Cards {
		if c.GameSessionID == sessionID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return f.ord[out[i].ID] < f.ord[out[j].ID] })
	return out, nil
}

// Votes

func (f *Fake) CreateVote(ctx context.Context, v *models.LeaderVote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, other := range f.Votes {
		if other.GameSessionID == v.GameSessionID &&
			other.VoterID == v.VoterID &&
			other.Round == v.Round {
			return game.ErrDuplicateVote
		}
	}
	f.Votes[v.ID] = v
	f.track(v.ID)
	return nil
}

func (f *Fake) ListTeamVotes(ctx context.Context, sessionID, teamID uuid.UUID, round int) ([]models.LeaderVote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.LeaderVote
	for _, v := range f.Votes {
		if v.GameSessionID == sessionID && v.TeamID == teamID && v.Round == round {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return f.ord[out[i].ID] < f.ord[out[j].ID] })
	return out, nil
}

func (f *Fake) DeleteTeamVotes(ctx context.Context, sessionID, teamID uuid.UUID, round int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, v := range f.Votes {
		if v.GameSessionID == sessionID && v.TeamID == teamID && v.Round == round {
			delete(f.Votes, id)
		}
	}
	return nil
}

// Responses

func (f *Fake) CreateResponse(ctx context.Context, r *models.PlayerResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, other := range f.Responses {
		if other.PlayerID == r.PlayerID && other.CardID == r.CardID {
			return game.ErrAlreadyResponded
		}
	}
	f.Responses[r.ID] = r
	f.track(r.ID)
	return nil
}

func (f *Fake) HasResponse(ctx context.Context, playerID, cardID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.Responses {
		if r.PlayerID == playerID && r.CardID == cardID {
			return true, nil
		}
	}
	return false, nil
}

func (f *Fake) ListCardResponses(ctx context.Context, sessionID, cardID uuid.UUID) ([]models.PlayerResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PlayerResponse
	for _, r := range f.Responses {
		if r.GameSessionID == sessionID && r.CardID == cardID {
			out = append(out, *r)
		}
	}
	return out, nil
}
