package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tsvoboda/crisis-council-backend/internal/election"
	"github.com/tsvoboda/crisis-council-backend/internal/game"
	"github.com/tsvoboda/crisis-council-backend/internal/ledger"
	"github.com/tsvoboda/crisis-council-backend/internal/rounds"
	"github.com/tsvoboda/crisis-council-backend/internal/store"
	"github.com/tsvoboda/crisis-council-backend/internal/teams"
	"github.com/tsvoboda/crisis-council-backend/pkg/types"
)

// hostKeyHeader authenticates host-only actions. Session auth proper is an
// external collaborator; the key is minted at session creation.
const hostKeyHeader = "X-Host-Key"

type API struct {
	engine   *rounds.Engine
	election *election.Coordinator
	ledger   *ledger.Ledger
	teams    *teams.Service
	log      *zap.Logger
}

func NewAPI(engine *rounds.Engine, coord *election.Coordinator, led *ledger.Ledger, tm *teams.Service, log *zap.Logger) *API {
	return &API{engine: engine, election: coord, ledger: led, teams: tm, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto status codes. Conflicts
// surface as "already voted/responded"; they are never retried server-side.
func writeError(w http.ResponseWriter, err error) {
	var (
		status int
		code   string
	)
	switch {
	case errors.Is(err, game.ErrValidation):
		status, code = http.StatusBadRequest, "validation"
	case errors.Is(err, game.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, game.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, game.ErrUnauthorized):
		status, code = http.StatusForbidden, "unauthorized"
	case errors.Is(err, game.ErrInvalidTransition):
		status, code = http.StatusUnprocessableEntity, "invalid_transition"
	default:
		status, code = http.StatusInternalServerError, "internal"
	}
	writeJSON(w, status, types.ErrorBody{Code: code, Message: err.Error()})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return game.ErrValidation
	}
	return nil
}

func sessionID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		return uuid.Nil, game.ErrValidation
	}
	return id, nil
}

func (a *API) createSession(w http.ResponseWriter, r *http.Request) {
	var req types.CreateSessionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sess, err := a.engine.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.CreateSessionResponse{
		ID:      sess.ID,
		Code:    sess.Code,
		HostKey: sess.HostKey,
	})
}

func (a *API) startSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.engine.Start(r.Context(), id, r.Header.Get(hostKeyHeader)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) pauseSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.engine.Pause(r.Context(), id, r.Header.Get(hostKeyHeader)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) resumeSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.engine.Resume(r.Context(), id, r.Header.Get(hostKeyHeader)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) createTeam(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req types.CreateTeamRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	team, err := a.teams.CreateTeam(r.Context(), id, r.Header.Get(hostKeyHeader), req.Name, req.Budget, req.BaseValue)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

func (a *API) deleteTeam(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	teamID, err := uuid.Parse(chi.URLParam(r, "teamID"))
	if err != nil {
		writeError(w, game.ErrValidation)
		return
	}
	if err := a.teams.DeleteTeam(r.Context(), id, teamID, r.Header.Get(hostKeyHeader)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) join(w http.ResponseWriter, r *http.Request) {
	var req types.JoinRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	player, err := a.teams.Join(r.Context(), req.Code, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.JoinResponse{
		SessionID: player.GameSessionID,
		PlayerID:  player.ID,
	})
}

func (a *API) setConnected(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req types.ConnectedRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := a.teams.SetConnected(r.Context(), id, req.PlayerID, req.IsConnected); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) assignTeams(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req types.AssignTeamsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	switch game.AssignStrategy(req.Strategy) {
	case game.AssignRandom:
		assignments, err := a.teams.AssignRandom(r.Context(), id, r.Header.Get(hostKeyHeader))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, assignments)
	case game.AssignManual:
		batch := make([]store.Assignment, 0, len(req.Assignments))
		for _, in := range req.Assignments {
			batch = append(batch, store.Assignment{PlayerID: in.PlayerID, TeamID: in.TeamID})
		}
		if err := a.teams.AssignManual(r.Context(), id, r.Header.Get(hostKeyHeader), batch); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, batch)
	default:
		writeError(w, game.ErrValidation)
	}
}

func (a *API) castVote(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req types.VoteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	out, err := a.election.CastVote(r.Context(), id, req.VoterID, req.CandidateID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) submitResponse(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req types.SubmitResponseRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	cons, err := a.ledger.SubmitResponse(r.Context(), id, req.PlayerID, req.CardID, req.ResponseID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cons)
}

func (a *API) snapshot(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := a.engine.Snapshot(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) results(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := a.engine.Results(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
