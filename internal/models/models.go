package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/tsvoboda/crisis-council-backend/internal/game"
)

// GameSession is one play-through, identified by a short join code.
type GameSession struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code     string    `gorm:"size:8;uniqueIndex;not null" json:"code"`
	HostKey  string    `gorm:"size:64;not null" json:"-"`
	Name     string    `gorm:"size:120;not null" json:"name"`

	Status      game.SessionStatus `gorm:"size:16;not null;default:'WAITING'" json:"status"`
	RoundStatus game.RoundStatus   `gorm:"size:24;not null;default:'LEADER_ELECTION'" json:"roundStatus"`

	CurrentRound     int `gorm:"not null;default:0" json:"currentRound"`
	CurrentCardIndex int `gorm:"not null;default:0" json:"currentCardIndex"`
	CardsPerRound    int `gorm:"not null;default:1" json:"cardsPerRound"`
	LeaderTermRounds int `gorm:"not null;default:1" json:"leaderTermRounds"`

	// Frozen at start; the single source of truth for card ordering.
	ShuffledCardIDs datatypes.JSONSlice[uuid.UUID] `json:"shuffledCardIds"`

	StartedAt         *time.Time `json:"startedAt"`
	LastCardStartedAt *time.Time `json:"lastCardStartedAt"`
	PausedAt          *time.Time `json:"pausedAt"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (GameSession) TableName() string { return "game_sessions" }

// ActiveCardID returns the id of the card the session is currently on.
func (s *GameSession) ActiveCardID() (uuid.UUID, bool) {
	if s.CurrentCardIndex < 0 || s.CurrentCardIndex >= len(s.ShuffledCardIDs) {
		return uuid.Nil, false
	}
	return s.ShuffledCardIDs[s.CurrentCardIndex], true
}

// Team belongs to exactly one session. Budget may go negative; debt is a
// displayed state, not an error.
type Team struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GameSessionID uuid.UUID `gorm:"type:uuid;index;not null;uniqueIndex:idx_teams_session_name" json:"gameSessionId"`
	Name          string    `gorm:"size:80;not null;uniqueIndex:idx_teams_session_name" json:"name"`
	Order         int       `gorm:"column:position;not null;default:0" json:"order"`

	Budget    int `gorm:"not null;default:0" json:"budget"`
	BaseValue int `gorm:"not null;default:0" json:"baseValue"`

	ElectionStatus          game.ElectionStatus            `gorm:"size:16;not null;default:'OPEN'" json:"electionStatus"`
	RunoffCandidates        datatypes.JSONSlice[uuid.UUID] `json:"runoffCandidates"`
	RunoffCount             int                            `gorm:"not null;default:0" json:"runoffCount"`
	LastLeaderElectionRound int                            `gorm:"not null;default:0" json:"lastLeaderElectionRound"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (Team) TableName() string { return "teams" }

// Player joins a session and is later assigned to a team. At most one
// player per team has IsLeader set.
type Player struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	GameSessionID uuid.UUID  `gorm:"type:uuid;index;not null" json:"gameSessionId"`
	TeamID        *uuid.UUID `gorm:"type:uuid;index" json:"teamId"`
	Name          string     `gorm:"size:80;not null" json:"name"`

	IsLeader    bool `gorm:"not null;default:false" json:"isLeader"`
	Score       int  `gorm:"not null;default:0" json:"score"`
	IsConnected bool `gorm:"not null;default:true" json:"isConnected"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (Player) TableName() string { return "players" }

// Card is a crisis scenario prompt with multiple response options.
type Card struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GameSessionID    uuid.UUID `gorm:"type:uuid;index;not null" json:"gameSessionId"`
	Title            string    `gorm:"size:160;not null" json:"title"`
	Description      string    `gorm:"type:text;not null" json:"description"`
	Category         string    `gorm:"size:80;not null" json:"category"`
	TimeLimitMinutes int       `gorm:"not null;default:2" json:"timeLimitMinutes"`

	Responses []CardResponse `gorm:"foreignKey:CardID" json:"responses"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (Card) TableName() string { return "cards" }

// CardResponse is one option on a card carrying a signed cost and five
// effect magnitudes.
type CardResponse struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CardID uuid.UUID `gorm:"type:uuid;index;not null" json:"cardId"`
	Text   string    `gorm:"type:text;not null" json:"text"`

	Cost                 int `gorm:"not null;default:0" json:"cost"`
	PoliticalEffect      int `gorm:"not null;default:0" json:"politicalEffect"`
	EconomicEffect       int `gorm:"not null;default:0" json:"economicEffect"`
	InfrastructureEffect int `gorm:"not null;default:0" json:"infrastructureEffect"`
	SocietyEffect        int `gorm:"not null;default:0" json:"societyEffect"`
	EnvironmentEffect    int `gorm:"not null;default:0" json:"environmentEffect"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (CardResponse) TableName() string { return "card_responses" }

// Effects bundles the response magnitudes for ledger math.
func (r CardResponse) Effects() game.Effects {
	return game.Effects{
		Political:      r.PoliticalEffect,
		Economic:       r.EconomicEffect,
		Infrastructure: r.InfrastructureEffect,
		Society:        r.SocietyEffect,
		Environment:    r.EnvironmentEffect,
	}
}

// PlayerResponse is the immutable at-most-once decision record. The unique
// index on (player, card) is the concurrency guarantee: a second submit for
// the same pair fails at the database, never silently overwrites.
type PlayerResponse struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GameSessionID  uuid.UUID `gorm:"type:uuid;index;not null" json:"gameSessionId"`
	PlayerID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_responses_player_card" json:"playerId"`
	CardID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_responses_player_card" json:"cardId"`
	CardResponseID uuid.UUID `gorm:"type:uuid;not null" json:"cardResponseId"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

func (PlayerResponse) TableName() string { return "player_responses" }

// LeaderVote is one ballot. Unique per (session, voter, round); rows are
// deleted en masse on a runoff restart and never updated otherwise.
type LeaderVote struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	GameSessionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_votes_session_voter_round" json:"gameSessionId"`
	TeamID        uuid.UUID `gorm:"type:uuid;index;not null" json:"teamId"`
	VoterID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_votes_session_voter_round" json:"voterId"`
	CandidateID   uuid.UUID `gorm:"type:uuid;not null" json:"candidateId"`
	Round         int       `gorm:"not null;uniqueIndex:idx_votes_session_voter_round" json:"round"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

func (LeaderVote) TableName() string { return "leader_votes" }
