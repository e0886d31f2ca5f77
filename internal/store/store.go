package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tsvoboda/crisis-council-backend/internal/game"
	"github.com/tsvoboda/crisis-council-backend/internal/models"
)

// Assignment pairs a player with a target team for batch reassignment.
type Assignment struct {
	PlayerID uuid.UUID
	TeamID   uuid.UUID
}

// Querier is the data access surface the services build on. The gorm store
// implements it; tests inject an in-memory fake so no live database is
// needed.
type Querier interface {
	CreateSession(ctx context.Context, s *models.GameSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.GameSession, error)
	GetSessionByCode(ctx context.Context, code string) (*models.GameSession, error)
	SaveSession(ctx context.Context, s *models.GameSession) error
	ListActiveSessions(ctx context.Context) ([]models.GameSession, error)

	CreateTeam(ctx context.Context, t *models.Team) error
	GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, error)
	ListTeams(ctx context.Context, sessionID uuid.UUID) ([]models.Team, error)
	SaveTeam(ctx context.Context, t *models.Team) error
	DeleteTeam(ctx context.Context, id uuid.UUID) error
	AddTeamBudget(ctx context.Context, teamID uuid.UUID, delta int) error

	CreatePlayer(ctx context.Context, p *models.Player) error
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	ListPlayers(ctx context.Context, sessionID uuid.UUID) ([]models.Player, error)
	ListTeamPlayers(ctx context.Context, teamID uuid.UUID) ([]models.Player, error)
	SavePlayer(ctx context.Context, p *models.Player) error
	AssignPlayers(ctx context.Context, assignments []Assignment) error
	SetTeamLeader(ctx context.Context, teamID, playerID uuid.UUID) error
	AddPlayerScore(ctx context.Context, playerID uuid.UUID, delta int) error

	CreateCard(ctx context.Context, c *models.Card) error
	GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error)
	ListCards(ctx context.Context, sessionID uuid.UUID) ([]models.Card, error)

	CreateVote(ctx context.Context, v *models.LeaderVote) error
	ListTeamVotes(ctx context.Context, sessionID, teamID uuid.UUID, round int) ([]models.LeaderVote, error)
	DeleteTeamVotes(ctx context.Context, sessionID, teamID uuid.UUID, round int) error

	CreateResponse(ctx context.Context, r *models.PlayerResponse) error
	HasResponse(ctx context.Context, playerID, cardID uuid.UUID) (bool, error)
	ListCardResponses(ctx context.Context, sessionID, cardID uuid.UUID) ([]models.PlayerResponse, error)
}

// DB adds transaction scoping on top of Querier. Every state mutation in the
// services runs inside exactly one Transaction call; partial application is
// impossible.
type DB interface {
	Querier
	Transaction(ctx context.Context, fn func(tx Querier) error) error
}

// Store is the gorm-backed implementation of DB.
type Store struct {
	db *gorm.DB
}

// Open connects to postgres and migrates the schema. TranslateError is on so
// unique index violations surface as gorm.ErrDuplicatedKey.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.AutoMigrate(
		&models.GameSession{},
		&models.Team{},
		&models.Player{},
		&models.Card{},
		&models.CardResponse{},
		&models.PlayerResponse{},
		&models.LeaderVote{},
	); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// New wraps an existing gorm handle; Transaction uses it to scope queries
// to the open tx.
func New(db *gorm.DB) *Store { return &Store{db: db} }

func (s *Store) Transaction(ctx context.Context, fn func(tx Querier) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// Sessions

func (s *Store) CreateSession(ctx context.Context, gs *models.GameSession) error {
	return s.db.WithContext(ctx).Create(gs).Error
}

func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	var gs models.GameSession
	err := s.db.WithContext(ctx).First(&gs, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, game.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &gs, nil
}

func (s *Store) GetSessionByCode(ctx context.Context, code string) (*models.GameSession, error) {
	var gs models.GameSession
	err := s.db.WithContext(ctx).First(&gs, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, game.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &gs, nil
}

func (s *Store) SaveSession(ctx context.Context, gs *models.GameSession) error {
	return s.db.WithContext(ctx).Save(gs).Error
}

func (s *Store) ListActiveSessions(ctx context.Context) ([]models.GameSession, error) {
	var out []models.GameSession
	err := s.db.WithContext(ctx).
		Where("status = ?", game.StatusInProgress).
		Find(&out).Error
	return out, err
}

// Teams

func (s *Store) CreateTeam(ctx context.Context, t *models.Team) error {
	err := s.db.WithContext(ctx).Create(t).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return game.ErrDuplicateTeamName
	}
	return err
}

func (s *Store) GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	var t models.Team
	err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, game.ErrTeamNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListTeams(ctx context.Context, sessionID uuid.UUID) ([]models.Team, error) {
	var out []models.Team
	err := s.db.WithContext(ctx).
		Where("game_session_id = ?", sessionID).
		Order("position asc").
		Find(&out).Error
	return out, err
}

func (s *Store) SaveTeam(ctx context.Context, t *models.Team) error {
	return s.db.WithContext(ctx).Save(t).Error
}

// DeleteTeam unassigns dependent players first. The invariant lives here,
// not in database cascade rules.
func (s *Store) DeleteTeam(ctx context.Context, id uuid.UUID) error {
	if err := s.db.WithContext(ctx).Model(&models.Player{}).
		Where("team_id = ?", id).
		Updates(map[string]any{"team_id": nil, "is_leader": false}).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&models.Team{}, "id = ?", id).Error
}

func (s *Store) AddTeamBudget(ctx context.Context, teamID uuid.UUID, delta int) error {
	return s.db.WithContext(ctx).Model(&models.Team{}).
		Where("id = ?", teamID).
		UpdateColumn("budget", gorm.Expr("budget + ?", delta)).Error
}

// Players

func (s *Store) CreatePlayer(ctx context.Context, p *models.Player) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *Store) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	var p models.Player
	err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, game.ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPlayers(ctx context.Context, sessionID uuid.UUID) ([]models.Player, error) {
	var out []models.Player
	err := s.db.WithContext(ctx).
		Where("game_session_id = ?", sessionID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

func (s *Store) ListTeamPlayers(ctx context.Context, teamID uuid.UUID) ([]models.Player, error) {
	var out []models.Player
	err := s.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

func (s *Store) SavePlayer(ctx context.Context, p *models.Player) error {
	return s.db.WithContext(ctx).Save(p).Error
}

func (s *Store) AssignPlayers(ctx context.Context, assignments []Assignment) error {
	for _, a := range assignments {
		if err := s.db.WithContext(ctx).Model(&models.Player{}).
			Where("id = ?", a.PlayerID).
			Updates(map[string]any{"team_id": a.TeamID, "is_leader": false}).Error; err != nil {
			return err
		}
	}
	return nil
}

// SetTeamLeader clears every leader flag on the team before setting the
// winner, keeping at most one leader per team.
func (s *Store) SetTeamLeader(ctx context.Context, teamID, playerID uuid.UUID) error {
	if err := s.db.WithContext(ctx).Model(&models.Player{}).
		Where("team_id = ?", teamID).
		UpdateColumn("is_leader", false).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&models.Player{}).
		Where("id = ?", playerID).
		UpdateColumn("is_leader", true).Error
}

func (s *Store) AddPlayerScore(ctx context.Context, playerID uuid.UUID, delta int) error {
	return s.db.WithContext(ctx).Model(&models.Player{}).
		Where("id = ?", playerID).
		UpdateColumn("score", gorm.Expr("score + ?", delta)).Error
}

// Cards

func (s *Store) CreateCard(ctx context.Context, c *models.Card) error {
	return s.db.WithContext(ctx).Create(c).Error
}

func (s *Store) GetCard(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	var c models.Card
	err := s.db.WithContext(ctx).Preload("Responses").First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, game.ErrCardNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCards(ctx context.Context, sessionID uuid.UUID) ([]models.Card, error) {
	var out []models.Card
	err := s.db.WithContext(ctx).Preload("Responses").
		Where("game_session_id = ?", sessionID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// Votes

func (s *Store) CreateVote(ctx context.Context, v *models.LeaderVote) error {
	err := s.db.WithContext(ctx).Create(v).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return game.ErrDuplicateVote
	}
	return err
}

func (s *Store) ListTeamVotes(ctx context.Context, sessionID, teamID uuid.UUID, round int) ([]models.LeaderVote, error) {
	var out []models.LeaderVote
	err := s.db.WithContext(ctx).
		Where("game_session_id = ? AND team_id = ? AND round = ?", sessionID, teamID, round).
		Find(&out).Error
	return out, err
}

func (s *Store) DeleteTeamVotes(ctx context.Context, sessionID, teamID uuid.UUID, round int) error {
	return s.db.WithContext(ctx).
		Where("game_session_id = ? AND team_id = ? AND round = ?", sessionID, teamID, round).
		Delete(&models.LeaderVote{}).Error
}

// Responses

func (s *Store) CreateResponse(ctx context.Context, r *models.PlayerResponse) error {
	err := s.db.WithContext(ctx).Create(r).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return game.ErrAlreadyResponded
	}
	return err
}

func (s *Store) HasResponse(ctx context.Context, playerID, cardID uuid.UUID) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.PlayerResponse{}).
		Where("player_id = ? AND card_id = ?", playerID, cardID).
		Count(&n).Error
	return n > 0, err
}

func (s *Store) ListCardResponses(ctx context.Context, sessionID, cardID uuid.UUID) ([]models.PlayerResponse, error) {
	var out []models.PlayerResponse
	err := s.db.WithContext(ctx).
		Where("game_session_id = ? AND card_id = ?", sessionID, cardID).
		Find(&out).Error
	return out, err
}
