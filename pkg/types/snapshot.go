package types

import "github.com/google/uuid"

// Snapshot is the poll payload: everything a client needs to render the
// current state of a session.
type Snapshot struct {
	SessionID        uuid.UUID    `json:"sessionId"`
	Code             string       `json:"code"`
	Status           string       `json:"status"`
	RoundStatus      string       `json:"roundStatus"`
	CurrentRound     int          `json:"currentRound"`
	CurrentCardIndex int          `json:"currentCardIndex"`
	TotalCards       int          `json:"totalCards"`
	TimeRemaining    int          `json:"timeRemaining"`
	ActiveCard       *ActiveCard  `json:"activeCard,omitempty"`
	Teams            []TeamView   `json:"teams"`
	Players          []PlayerView `json:"players"`
}

type ActiveCard struct {
	ID               uuid.UUID      `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Category         string         `json:"category"`
	TimeLimitMinutes int            `json:"timeLimitMinutes"`
	Responses        []ResponseView `json:"responses"`
}

type ResponseView struct {
	ID                   uuid.UUID `json:"id"`
	Text                 string    `json:"text"`
	Cost                 int       `json:"cost"`
	PoliticalEffect      int       `json:"politicalEffect"`
	EconomicEffect       int       `json:"economicEffect"`
	InfrastructureEffect int       `json:"infrastructureEffect"`
	SocietyEffect        int       `json:"societyEffect"`
	EnvironmentEffect    int       `json:"environmentEffect"`
}

type TeamView struct {
	ID               uuid.UUID   `json:"id"`
	Name             string      `json:"name"`
	Budget           int         `json:"budget"`
	BaseValue        int         `json:"baseValue"`
	ElectionStatus   string      `json:"electionStatus"`
	RunoffCandidates []uuid.UUID `json:"runoffCandidates,omitempty"`
	LeaderID         *uuid.UUID  `json:"leaderId,omitempty"`
}

type PlayerView struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	TeamID      *uuid.UUID `json:"teamId,omitempty"`
	IsLeader    bool       `json:"isLeader"`
	Score       int        `json:"score"`
	IsConnected bool       `json:"isConnected"`
}

// Results is the end-of-session (or host) view with rankings and awards.
type Results struct {
	SessionID uuid.UUID    `json:"sessionId"`
	Status    string       `json:"status"`
	Teams     []TeamResult `json:"teams"`
	Winners   []uuid.UUID  `json:"winners"`
}

type TeamResult struct {
	ID      uuid.UUID      `json:"id"`
	Name    string         `json:"name"`
	Score   int            `json:"score"`
	Budget  int            `json:"budget"`
	IsDebt  bool           `json:"isDebt"`
	Players []PlayerResult `json:"players"`
}

type PlayerResult struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Score  int       `json:"score"`
	Awards []string  `json:"awards,omitempty"`
}
