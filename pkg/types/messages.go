package types

import "github.com/google/uuid"

// Client -> Server request bodies.

type CardResponseInput struct {
	Text                 string `json:"text"`
	Cost                 int    `json:"cost"`
	PoliticalEffect      int    `json:"politicalEffect"`
	EconomicEffect       int    `json:"economicEffect"`
	InfrastructureEffect int    `json:"infrastructureEffect"`
	SocietyEffect        int    `json:"societyEffect"`
	EnvironmentEffect    int    `json:"environmentEffect"`
}

type CardInput struct {
	Title            string              `json:"title"`
	Description      string              `json:"description"`
	Category         string              `json:"category"`
	TimeLimitMinutes int                 `json:"timeLimitMinutes"`
	Responses        []CardResponseInput `json:"responses"`
}

type CreateSessionRequest struct {
	Name             string      `json:"name"`
	CardsPerRound    int         `json:"cardsPerRound"`
	LeaderTermRounds int         `json:"leaderTermRounds"`
	Cards            []CardInput `json:"cards"`
}

type CreateSessionResponse struct {
	ID      uuid.UUID `json:"id"`
	Code    string    `json:"code"`
	HostKey string    `json:"hostKey"`
}

type CreateTeamRequest struct {
	Name      string `json:"name"`
	Budget    int    `json:"budget"`
	BaseValue int    `json:"baseValue"`
}

type JoinRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type JoinResponse struct {
	SessionID uuid.UUID `json:"sessionId"`
	PlayerID  uuid.UUID `json:"playerId"`
}

type AssignmentInput struct {
	PlayerID uuid.UUID `json:"playerId"`
	TeamID   uuid.UUID `json:"teamId"`
}

type AssignTeamsRequest struct {
	Strategy    string            `json:"strategy"` // "random" | "manual"
	Assignments []AssignmentInput `json:"assignments,omitempty"`
}

type VoteRequest struct {
	VoterID     uuid.UUID `json:"voterId"`
	CandidateID uuid.UUID `json:"candidateId"`
}

type SubmitResponseRequest struct {
	PlayerID   uuid.UUID `json:"playerId"`
	CardID     uuid.UUID `json:"cardId"`
	ResponseID uuid.UUID `json:"responseId"`
}

type ConnectedRequest struct {
	PlayerID    uuid.UUID `json:"playerId"`
	IsConnected bool      `json:"isConnected"`
}

// ErrorBody is the wire shape for every error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PushMessage is what the websocket fast-path writes. It carries no state;
// it only tells the client to poll now instead of at the next interval.
type PushMessage struct {
	Type      string    `json:"type"`
	SessionID uuid.UUID `json:"sessionId"`
}
