package game

// SessionStatus is the lifecycle state of a whole game session.
type SessionStatus string

const (
	StatusWaiting    SessionStatus = "WAITING"
	StatusInProgress SessionStatus = "IN_PROGRESS"
	StatusPaused     SessionStatus = "PAUSED"
	StatusCompleted  SessionStatus = "COMPLETED"
)

// RoundStatus is the phase within a running session. Only meaningful
// while the session is IN_PROGRESS.
type RoundStatus string

const (
	RoundLeaderElection RoundStatus = "LEADER_ELECTION"
	RoundDecisionPhase  RoundStatus = "DECISION_PHASE"
	RoundResultsPhase   RoundStatus = "RESULTS_PHASE"
)

// ElectionStatus is the per-team voting state for the current round.
type ElectionStatus string

const (
	ElectionOpen      ElectionStatus = "OPEN"
	ElectionRunoff    ElectionStatus = "RUNOFF"
	ElectionCompleted ElectionStatus = "COMPLETED"
)

// AssignStrategy selects how players are distributed across teams.
type AssignStrategy string

const (
	AssignRandom AssignStrategy = "random"
	AssignManual AssignStrategy = "manual"
)
