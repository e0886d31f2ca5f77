package game

import (
	"errors"
	"fmt"
)

// Category sentinels. Every domain error wraps exactly one of these so the
// transport layer can map it to a status code with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid transition")
)

var (
	ErrSessionNotFound = fmt.Errorf("%w: session", ErrNotFound)
	ErrPlayerNotFound  = fmt.Errorf("%w: player", ErrNotFound)
	ErrTeamNotFound    = fmt.Errorf("%w: team", ErrNotFound)
	ErrCardNotFound    = fmt.Errorf("%w: card", ErrNotFound)

	ErrDuplicateVote     = fmt.Errorf("%w: already voted this round", ErrConflict)
	ErrAlreadyResponded  = fmt.Errorf("%w: already responded to this card", ErrConflict)
	ErrDuplicateTeamName = fmt.Errorf("%w: team name already taken", ErrConflict)

	ErrNotHost       = fmt.Errorf("%w: host key required", ErrUnauthorized)
	ErrNotTeammates  = fmt.Errorf("%w: voter and candidate are not teammates", ErrUnauthorized)
	ErrPlayerNoTeam  = fmt.Errorf("%w: player has no team", ErrUnauthorized)
	ErrNotInSession  = fmt.Errorf("%w: player does not belong to this session", ErrUnauthorized)

	ErrNotRunoffCandidate = fmt.Errorf("%w: candidate is not in the runoff", ErrValidation)
	ErrNoTeams            = fmt.Errorf("%w: session has no teams", ErrValidation)
	ErrNoConnectedPlayers = fmt.Errorf("%w: session has no connected players", ErrValidation)
	ErrWrongCard          = fmt.Errorf("%w: card is not the active card", ErrValidation)
	ErrUnknownResponse    = fmt.Errorf("%w: response does not belong to card", ErrValidation)
)
